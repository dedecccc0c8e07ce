package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/boostsecurityio/secretaudit/audit"
	"github.com/boostsecurityio/secretaudit/providers/scm/domain"
	"github.com/google/go-github/v59/github"
	"github.com/rs/zerolog/log"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

const GitHub string = "github"

func NewGithubSCMClient(ctx context.Context, baseURL string, token string) (*ScmClient, error) {
	domain := scm_domain.DefaultGitHubDomain
	if baseURL != "" {
		domain = baseURL
	}

	apiURL := ""
	if domain != scm_domain.DefaultGitHubDomain {
		apiURL = fmt.Sprintf("https://%s/", domain)
	}

	client, err := NewClient(ctx, token, apiURL)
	if err != nil {
		return nil, err
	}

	return &ScmClient{
		client:  client,
		baseURL: domain,
	}, nil
}

type ScmClient struct {
	client  *Client
	baseURL string
}

var _ audit.ScmClient = (*ScmClient)(nil)

func (s *ScmClient) ListOrgRepos(ctx context.Context, org string, page int) ([]audit.Repo, error) {
	return s.client.ListOrgRepos(ctx, org, page)
}

func (s *ScmClient) ListRepoSecrets(ctx context.Context, org string, repo string, page int) (audit.SecretsPage, error) {
	return s.client.ListRepoSecrets(ctx, org, repo, page)
}

func (s *ScmClient) ListRepoCollaborators(ctx context.Context, org string, repo string) ([]audit.Collaborator, error) {
	return s.client.ListRepoCollaborators(ctx, org, repo)
}

func (s *ScmClient) CountOrgRepos(ctx context.Context, org string) (int, error) {
	return s.client.CountOrgRepos(ctx, org)
}

func (s *ScmClient) GetProviderName() string {
	return GitHub
}

func (s *ScmClient) GetProviderBaseURL() string {
	return s.baseURL
}

type Client struct {
	restClient    *github.Client
	graphQLClient *githubv4.Client
	Token         string
}

// NewClient builds REST and GraphQL clients sharing one bearer-authenticated transport.
// An empty apiURL targets github.com; otherwise apiURL is the root of a GitHub
// Enterprise Server, e.g. https://ghe.example.com/.
func NewClient(ctx context.Context, token string, apiURL string) (*Client, error) {
	src := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	httpClient := oauth2.NewClient(ctx, src)
	httpClient.Transport = &headerTransport{next: httpClient.Transport}

	var (
		restClient    = github.NewClient(httpClient)
		graphQLClient *githubv4.Client
		err           error
	)

	if apiURL == "" {
		graphQLClient = githubv4.NewClient(httpClient)
	} else {
		restClient, err = restClient.WithEnterpriseURLs(apiURL, apiURL)
		if err != nil {
			return nil, err
		}

		graphQLClient = githubv4.NewEnterpriseClient(apiURL+"api/graphql", httpClient)
	}

	return &Client{
		restClient:    restClient,
		graphQLClient: graphQLClient,
		Token:         token,
	}, nil
}

func (c *Client) ListOrgRepos(ctx context.Context, org string, page int) ([]audit.Repo, error) {
	opts := &github.RepositoryListByOrgOptions{
		ListOptions: github.ListOptions{Page: page},
	}
	repos, _, err := c.restClient.Repositories.ListByOrg(ctx, org, opts)
	if err != nil {
		return nil, err
	}

	converted := make([]audit.Repo, 0, len(repos))
	for _, repo := range repos {
		converted = append(converted, audit.Repo{
			Name:    repo.GetName(),
			Private: repo.GetPrivate(),
		})
	}
	return converted, nil
}

func (c *Client) ListRepoSecrets(ctx context.Context, org string, repo string, page int) (audit.SecretsPage, error) {
	secrets, _, err := c.restClient.Actions.ListRepoSecrets(ctx, org, repo, &github.ListOptions{Page: page})
	if err != nil {
		return audit.SecretsPage{}, err
	}

	result := audit.SecretsPage{
		TotalCount: secrets.TotalCount,
		Names:      make([]string, 0, len(secrets.Secrets)),
	}
	for _, secret := range secrets.Secrets {
		result.Names = append(result.Names, secret.Name)
	}
	return result, nil
}

// ListRepoCollaborators returns the first page of collaborators only.
func (c *Client) ListRepoCollaborators(ctx context.Context, org string, repo string) ([]audit.Collaborator, error) {
	users, _, err := c.restClient.Repositories.ListCollaborators(ctx, org, repo, nil)
	if err != nil {
		var errorResponse *github.ErrorResponse
		if errors.As(err, &errorResponse) && errorResponse.Response.StatusCode == http.StatusForbidden {
			log.Debug().Msgf("Forbidden to list collaborators for %s/%s", org, repo)
		}
		return nil, err
	}

	collaborators := make([]audit.Collaborator, 0, len(users))
	for _, user := range users {
		collaborators = append(collaborators, audit.Collaborator{
			Login:       user.GetLogin(),
			Permissions: user.Permissions,
		})
	}
	return collaborators, nil
}

func (c *Client) CountOrgRepos(ctx context.Context, org string) (int, error) {
	variables := map[string]interface{}{
		"org": githubv4.String(org),
	}

	var query struct {
		RepositoryOwner struct {
			Login        string
			Repositories struct {
				TotalCount int
			}
		} `graphql:"repositoryOwner(login: $org)"`
	}

	err := c.graphQLClient.Query(ctx, &query, variables)
	if err != nil {
		return 0, err
	}
	if query.RepositoryOwner.Login == "" {
		return 0, errors.New("org does not exist")
	}
	return query.RepositoryOwner.Repositories.TotalCount, nil
}
