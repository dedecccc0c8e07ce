package gitlab

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/boostsecurityio/secretaudit/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gitlab-org/api/client-go"
)

type mockGitLab struct {
	mu       sync.Mutex
	requests []string
	routes   map[string]http.HandlerFunc
}

func newMockGitLab(t *testing.T, routes map[string]http.HandlerFunc) (*mockGitLab, *ScmClient) {
	t.Helper()
	m := &mockGitLab{routes: routes}
	server := httptest.NewServer(m)
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL, "glpat-test")
	require.NoError(t, err)
	return m, &ScmClient{client: client, baseURL: server.URL}
}

func (m *mockGitLab) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.EscapedPath()
	m.mu.Lock()
	m.requests = append(m.requests, path+"?page="+r.URL.Query().Get("page"))
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if handler, ok := m.routes[path]; ok && r.Method == http.MethodGet {
		handler(w, r)
		return
	}
	w.WriteHeader(http.StatusNotFound)
	_, _ = io.WriteString(w, `{"message": "404 Not Found"}`)
}

func (m *mockGitLab) count(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.requests {
		if len(r) >= len(path) && r[:len(path)] == path {
			n++
		}
	}
	return n
}

// paged serves pages[page-1] with X-Total set to total, and [] past the end.
func paged(total int, pages ...interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil || page < 1 {
			page = 1
		}
		w.Header().Set("X-Total", strconv.Itoa(total))
		if page-1 < len(pages) {
			_ = json.NewEncoder(w).Encode(pages[page-1])
			return
		}
		_, _ = io.WriteString(w, `[]`)
	}
}

func TestListGroupProjects(t *testing.T) {
	_, client := newMockGitLab(t, map[string]http.HandlerFunc{
		"/api/v4/groups/acme/projects": paged(2, []map[string]interface{}{
			{"id": 1, "path_with_namespace": "acme/api", "visibility": "private"},
			{"id": 2, "path_with_namespace": "acme/infra/site", "visibility": "public"},
		}),
	})

	repos, err := client.ListOrgRepos(context.Background(), "acme", 1)
	require.NoError(t, err)
	assert.Equal(t, []audit.Repo{
		{Name: "api", Private: true},
		{Name: "infra/site", Private: false},
	}, repos)

	repos, err = client.ListOrgRepos(context.Background(), "acme", 2)
	require.NoError(t, err)
	assert.Empty(t, repos)
}

func TestCountGroupProjects(t *testing.T) {
	_, client := newMockGitLab(t, map[string]http.HandlerFunc{
		"/api/v4/groups/acme/projects": paged(17, []map[string]interface{}{
			{"id": 1, "path_with_namespace": "acme/api", "visibility": "private"},
		}),
	})

	count, err := client.CountOrgRepos(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 17, count)
}

func TestListProjectVariables(t *testing.T) {
	_, client := newMockGitLab(t, map[string]http.HandlerFunc{
		"/api/v4/projects/acme%2Fapi/variables": paged(3,
			[]map[string]interface{}{{"key": "AWS_KEY"}, {"key": "NPM_TOKEN"}},
			[]map[string]interface{}{{"key": "DEPLOY_KEY"}},
		),
	})

	page, err := client.ListRepoSecrets(context.Background(), "acme", "api", 1)
	require.NoError(t, err)
	assert.Equal(t, audit.SecretsPage{TotalCount: 3, Names: []string{"AWS_KEY", "NPM_TOKEN"}}, page)

	page, err = client.ListRepoSecrets(context.Background(), "acme", "api", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"DEPLOY_KEY"}, page.Names)
}

func TestListProjectMembers(t *testing.T) {
	mock, client := newMockGitLab(t, map[string]http.HandlerFunc{
		"/api/v4/projects/acme%2Fapi/members/all": paged(4,
			[]map[string]interface{}{
				{"id": 1, "username": "owner", "access_level": 50},
				{"id": 2, "username": "maint", "access_level": 40},
			},
			[]map[string]interface{}{
				{"id": 3, "username": "dev", "access_level": 30},
				{"id": 4, "username": "guest", "access_level": 10},
			},
		),
	})

	members, err := client.ListRepoCollaborators(context.Background(), "acme", "api")
	require.NoError(t, err)

	require.Len(t, members, 4)
	assert.Equal(t, audit.Collaborator{Login: "owner", Permissions: map[string]bool{"admin": true, "maintain": true}}, members[0])
	assert.Equal(t, audit.Collaborator{Login: "maint", Permissions: map[string]bool{"admin": false, "maintain": true}}, members[1])
	assert.Equal(t, audit.Collaborator{Login: "dev", Permissions: map[string]bool{"admin": false, "maintain": false}}, members[2])
	assert.Equal(t, 3, mock.count("/api/v4/projects/acme%2Fapi/members/all"))
}

func TestErrorStatusIsAnError(t *testing.T) {
	mock, client := newMockGitLab(t, map[string]http.HandlerFunc{
		"/api/v4/projects/acme%2Fapi/variables": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"message": "403 Forbidden"}`)
		},
	})

	_, err := client.ListRepoSecrets(context.Background(), "acme", "api", 1)
	require.Error(t, err)

	var errorResponse *gitlab.ErrorResponse
	require.True(t, errors.As(err, &errorResponse))
	assert.Equal(t, http.StatusForbidden, errorResponse.Response.StatusCode)
	assert.Equal(t, 1, mock.count("/api/v4/projects/acme%2Fapi/variables"))
}

func TestAccessLevelPermissions(t *testing.T) {
	assert.Equal(t, map[string]bool{"admin": true, "maintain": true}, accessLevelPermissions(gitlab.OwnerPermissions))
	assert.Equal(t, map[string]bool{"admin": false, "maintain": true}, accessLevelPermissions(gitlab.MaintainerPermissions))
	assert.Equal(t, map[string]bool{"admin": false, "maintain": false}, accessLevelPermissions(gitlab.DeveloperPermissions))
}

func TestNewGitlabSCMClient(t *testing.T) {
	client, err := NewGitlabSCMClient(context.Background(), "", "glpat-test")
	require.NoError(t, err)
	assert.Equal(t, "gitlab.com", client.GetProviderBaseURL())
	assert.Equal(t, GitLab, client.GetProviderName())

	client, err = NewGitlabSCMClient(context.Background(), "gitlab.example.com", "glpat-test")
	require.NoError(t, err)
	assert.Equal(t, "gitlab.example.com", client.GetProviderBaseURL())
}
