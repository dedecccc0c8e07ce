package json

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/boostsecurityio/secretaudit/results"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		repos    []results.Repository
		expected string
	}{
		{
			name:     "nil",
			repos:    nil,
			expected: "[]\n",
		},
		{
			name:     "empty",
			repos:    []results.Repository{},
			expected: "[]\n",
		},
		{
			name: "one repository",
			repos: []results.Repository{
				{
					Name:    "api",
					Private: true,
					Secrets: []string{"AWS_KEY", "NPM_TOKEN"},
					Collaborators: []results.Collaborator{
						{Login: "alice", Role: results.RoleAdmin},
						{Login: "bob", Role: results.RoleMaintainer},
					},
				},
			},
			expected: `[
    {
        "name": "api",
        "private": true,
        "secrets": [
            "AWS_KEY",
            "NPM_TOKEN"
        ],
        "collaborators": [
            {
                "login": "alice",
                "role": "admin"
            },
            {
                "login": "bob",
                "role": "maintainer"
            }
        ]
    }
]
`,
		},
		{
			name:  "nil fields and html characters",
			repos: []results.Repository{{Name: "a&b<c>"}},
			expected: `[
    {
        "name": "a&b<c>",
        "private": false,
        "secrets": [],
        "collaborators": []
    }
]
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, tt.repos))
			assert.Equal(t, tt.expected, buf.String())
		})
	}
}

func TestFormatWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repos_with_secrets_and_collaborators.json")
	repos := []results.Repository{
		{
			Name:          "api",
			Secrets:       []string{"TOKEN"},
			Collaborators: []results.Collaborator{{Login: "alice", Role: results.RoleAdmin}},
		},
	}

	require.NoError(t, NewFormat(path).Format(context.Background(), repos))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name": "api", "private": false, "secrets": ["TOKEN"], "collaborators": [{"login": "alice", "role": "admin"}]}]`, string(data))
}

func TestFormatUnwritablePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "report.json")
	err := NewFormat(path).Format(context.Background(), nil)
	assert.ErrorContains(t, err, "failed to write report")
}
