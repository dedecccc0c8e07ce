// Package audit finds repositories whose Actions secrets are reachable by privileged collaborators.
package audit

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/boostsecurityio/secretaudit/pagination"
	"github.com/boostsecurityio/secretaudit/results"
	"github.com/boostsecurityio/secretaudit/retry"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

type Repo struct {
	Name    string
	Private bool
}

type SecretsPage struct {
	TotalCount int
	Names      []string
}

type Collaborator struct {
	Login       string
	Permissions map[string]bool
}

type ScmClient interface {
	ListOrgRepos(ctx context.Context, org string, page int) ([]Repo, error)
	ListRepoSecrets(ctx context.Context, org string, repo string, page int) (SecretsPage, error)
	ListRepoCollaborators(ctx context.Context, org string, repo string) ([]Collaborator, error)
	CountOrgRepos(ctx context.Context, org string) (int, error)
	GetProviderName() string
}

type Formatter interface {
	Format(ctx context.Context, repos []results.Repository) error
}

type Auditor struct {
	ScmClient   ScmClient
	Formatter   Formatter
	RetryPolicy retry.Policy
	Progress    io.Writer
}

func NewAuditor(scmClient ScmClient, formatter Formatter) *Auditor {
	return &Auditor{
		ScmClient:   scmClient,
		Formatter:   formatter,
		RetryPolicy: retry.CollaboratorPolicy,
		Progress:    os.Stderr,
	}
}

// AuditOrg scans org and hands the complete result to the formatter. Nothing is
// formatted when the scan fails.
func (a *Auditor) AuditOrg(ctx context.Context, org string) error {
	repos, err := a.ScanOrg(ctx, org)
	if err != nil {
		return err
	}

	log.Info().Msgf("Found %d repositories with secrets and privileged collaborators in %s", len(repos), org)
	return a.Formatter.Format(ctx, repos)
}

// ScanOrg returns, in listing order, every repository of org that has at least one
// Actions secret and at least one admin or maintainer collaborator.
func (a *Auditor) ScanOrg(ctx context.Context, org string) ([]results.Repository, error) {
	provider := a.ScmClient.GetProviderName()
	log.Debug().Msgf("Fetching list of repositories for organization: %s on %s", org, provider)

	bar := a.newProgressBar(ctx, org)
	defer func() { _ = bar.Finish() }()

	repoPages := pagination.Pages(ctx, 1, func(ctx context.Context, page int) ([]Repo, error) {
		log.Debug().Str("org", org).Int("page", page).Msg("Listing repositories")
		return a.ScmClient.ListOrgRepos(ctx, org, page)
	})

	found := []results.Repository{}
	for repos, err := range repoPages {
		if err != nil {
			return nil, fmt.Errorf("failed to list repositories of %s: %w", org, err)
		}

		for _, repo := range repos {
			result, err := a.scanRepo(ctx, org, repo)
			if err != nil {
				return nil, err
			}
			if result != nil {
				found = append(found, *result)
			}
			_ = bar.Add(1)
		}
	}

	return found, nil
}

func (a *Auditor) scanRepo(ctx context.Context, org string, repo Repo) (*results.Repository, error) {
	logger := log.With().Str("repo", repo.Name).Logger()

	first, err := a.ScmClient.ListRepoSecrets(ctx, org, repo.Name, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to list secrets of %s/%s: %w", org, repo.Name, err)
	}
	if first.TotalCount == 0 {
		logger.Debug().Msg("No secrets, skipping")
		return nil, nil
	}

	secrets, err := a.secretNames(ctx, org, repo.Name, first)
	if err != nil {
		return nil, err
	}

	collaborators, err := a.fetchCollaborators(ctx, org, repo.Name)
	if err != nil {
		return nil, err
	}

	privileged := filterPrivileged(collaborators)
	if len(privileged) == 0 {
		logger.Debug().Int("secrets", len(secrets)).Msg("No admin or maintainer collaborators, skipping")
		return nil, nil
	}

	match := &results.Repository{
		Name:          repo.Name,
		Private:       repo.Private,
		Secrets:       secrets,
		Collaborators: privileged,
	}
	logger.Debug().Stringer("repository", match).Msg("Repository matches")
	return match, nil
}

// secretNames continues from an already fetched first page until an empty page.
func (a *Auditor) secretNames(ctx context.Context, org string, repo string, first SecretsPage) ([]string, error) {
	names := append([]string{}, first.Names...)
	if len(first.Names) == 0 {
		return names, nil
	}

	rest, err := pagination.All(ctx, 2, func(ctx context.Context, page int) ([]string, error) {
		secrets, err := a.ScmClient.ListRepoSecrets(ctx, org, repo, page)
		return secrets.Names, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list secrets of %s/%s: %w", org, repo, err)
	}
	return append(names, rest...), nil
}

func (a *Auditor) fetchCollaborators(ctx context.Context, org string, repo string) ([]Collaborator, error) {
	collaborators, err := retry.Do(ctx, a.RetryPolicy, func(ctx context.Context) ([]Collaborator, error) {
		return a.ScmClient.ListRepoCollaborators(ctx, org, repo)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list collaborators of %s/%s: %w", org, repo, err)
	}
	return collaborators, nil
}

func filterPrivileged(collaborators []Collaborator) []results.Collaborator {
	var privileged []results.Collaborator
	for _, c := range collaborators {
		role, ok := results.RoleFromPermissions(c.Permissions)
		if !ok {
			continue
		}
		privileged = append(privileged, results.Collaborator{Login: c.Login, Role: role})
	}
	return privileged
}

func (a *Auditor) newProgressBar(ctx context.Context, org string) *progressbar.ProgressBar {
	out := a.Progress
	if out == nil {
		out = io.Discard
	}

	total := -1
	if out != io.Discard {
		count, err := a.ScmClient.CountOrgRepos(ctx, org)
		if err != nil {
			log.Debug().Err(err).Msgf("Failed to count repositories of %s", org)
		} else if count > 0 {
			total = count
		}
	}

	return progressbar.NewOptions(
		total,
		progressbar.OptionSetDescription("Auditing repositories"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWriter(out),
	)
}
