package gitlab

import (
	"context"
	"fmt"
	"strings"

	"github.com/boostsecurityio/secretaudit/audit"
	"github.com/boostsecurityio/secretaudit/pagination"
	"github.com/boostsecurityio/secretaudit/providers/scm/domain"
	"github.com/boostsecurityio/secretaudit/results"
	"github.com/rs/zerolog/log"
	"gitlab.com/gitlab-org/api/client-go"
)

const GitLab string = "gitlab"

func NewGitlabSCMClient(ctx context.Context, baseURL string, token string) (*ScmClient, error) {
	domain := scm_domain.DefaultGitLabDomain
	if baseURL != "" {
		domain = baseURL
	}

	client, err := NewClient(fmt.Sprintf("https://%s", domain), token)
	if err != nil {
		return nil, err
	}

	return &ScmClient{
		client:  client,
		baseURL: domain,
	}, nil
}

// ScmClient audits a GitLab group: projects stand in for repositories, CI/CD variables
// for Actions secrets and Owner/Maintainer members for admin/maintain collaborators.
type ScmClient struct {
	client  *Client
	baseURL string
}

var _ audit.ScmClient = (*ScmClient)(nil)

func (s *ScmClient) ListOrgRepos(ctx context.Context, org string, page int) ([]audit.Repo, error) {
	return s.client.ListGroupProjects(ctx, org, page)
}

func (s *ScmClient) ListRepoSecrets(ctx context.Context, org string, repo string, page int) (audit.SecretsPage, error) {
	return s.client.ListProjectVariables(ctx, projectPath(org, repo), page)
}

func (s *ScmClient) ListRepoCollaborators(ctx context.Context, org string, repo string) ([]audit.Collaborator, error) {
	return s.client.ListProjectMembers(ctx, projectPath(org, repo))
}

func (s *ScmClient) CountOrgRepos(ctx context.Context, org string) (int, error) {
	return s.client.CountGroupProjects(ctx, org)
}

func (s *ScmClient) GetProviderName() string {
	return GitLab
}

func (s *ScmClient) GetProviderBaseURL() string {
	return s.baseURL
}

func projectPath(group string, project string) string {
	return group + "/" + project
}

type Client struct {
	Token  string
	client *gitlab.Client
}

// NewClient targets the GitLab instance rooted at baseURL. The client's own retries
// are disabled so failures surface on the first non-2xx response.
func NewClient(baseURL string, token string) (*Client, error) {
	gitlabClient, err := gitlab.NewClient(token,
		gitlab.WithBaseURL(baseURL),
		gitlab.WithCustomRetryMax(0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gitlab client: %w", err)
	}
	return &Client{
		Token:  token,
		client: gitlabClient,
	}, nil
}

func (c *Client) ListGroupProjects(ctx context.Context, group string, page int) ([]audit.Repo, error) {
	opt := &gitlab.ListGroupProjectsOptions{
		ListOptions: gitlab.ListOptions{
			Page: page,
		},
		IncludeSubGroups: gitlab.Ptr(true),
	}

	projects, _, err := c.client.Groups.ListGroupProjects(group, opt, gitlab.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	repos := make([]audit.Repo, 0, len(projects))
	for _, project := range projects {
		repos = append(repos, projectToRepo(group, project))
	}
	return repos, nil
}

func (c *Client) CountGroupProjects(ctx context.Context, group string) (int, error) {
	opt := &gitlab.ListGroupProjectsOptions{
		ListOptions: gitlab.ListOptions{
			PerPage: 1,
			Page:    1,
		},
		IncludeSubGroups: gitlab.Ptr(true),
	}

	_, resp, err := c.client.Groups.ListGroupProjects(group, opt, gitlab.WithContext(ctx))
	if err != nil {
		return 0, err
	}
	return resp.TotalItems, nil
}

func (c *Client) ListProjectVariables(ctx context.Context, project string, page int) (audit.SecretsPage, error) {
	opt := &gitlab.ListProjectVariablesOptions{}
	opt.Page = page

	variables, resp, err := c.client.ProjectVariables.ListVariables(project, opt, gitlab.WithContext(ctx))
	if err != nil {
		return audit.SecretsPage{}, err
	}

	result := audit.SecretsPage{
		TotalCount: resp.TotalItems,
		Names:      make([]string, 0, len(variables)),
	}
	for _, v := range variables {
		result.Names = append(result.Names, v.Key)
	}
	if result.TotalCount == 0 {
		result.TotalCount = len(result.Names)
	}
	return result, nil
}

// ListProjectMembers returns every member, inherited ones included, across all pages.
func (c *Client) ListProjectMembers(ctx context.Context, project string) ([]audit.Collaborator, error) {
	members, err := pagination.All(ctx, 1, func(ctx context.Context, page int) ([]*gitlab.ProjectMember, error) {
		opt := &gitlab.ListProjectMembersOptions{}
		opt.Page = page
		members, _, err := c.client.ProjectMembers.ListAllProjectMembers(project, opt, gitlab.WithContext(ctx))
		return members, err
	})
	if err != nil {
		return nil, err
	}

	collaborators := make([]audit.Collaborator, 0, len(members))
	for _, m := range members {
		collaborators = append(collaborators, audit.Collaborator{
			Login:       m.Username,
			Permissions: accessLevelPermissions(m.AccessLevel),
		})
	}
	log.Debug().Str("project", project).Int("members", len(collaborators)).Msg("Listed project members")
	return collaborators, nil
}

func accessLevelPermissions(level gitlab.AccessLevelValue) map[string]bool {
	return map[string]bool{
		results.PermissionAdmin:    level >= gitlab.OwnerPermissions,
		results.PermissionMaintain: level >= gitlab.MaintainerPermissions,
	}
}

func projectToRepo(group string, project *gitlab.Project) audit.Repo {
	return audit.Repo{
		Name:    strings.TrimPrefix(project.PathWithNamespace, group+"/"),
		Private: project.Visibility != gitlab.PublicVisibility,
	}
}
