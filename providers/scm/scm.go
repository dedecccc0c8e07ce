package scm

import (
	"context"
	"fmt"

	"github.com/boostsecurityio/secretaudit/audit"
	"github.com/boostsecurityio/secretaudit/providers/github"
	"github.com/boostsecurityio/secretaudit/providers/gitlab"
)

const (
	GitHub string = "github"
	GitLab string = "gitlab"
)

func NewScmClient(ctx context.Context, providerType string, baseURL string, token string) (audit.ScmClient, error) {
	if token == "" {
		return nil, fmt.Errorf("token must be provided via access_token in the config file")
	}

	var (
		client audit.ScmClient
		err    error
	)
	switch providerType {
	case "", GitHub:
		client, err = github.NewGithubSCMClient(ctx, baseURL, token)
	case GitLab:
		client, err = gitlab.NewGitlabSCMClient(ctx, baseURL, token)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", providerType, err)
	}
	return client, nil
}
