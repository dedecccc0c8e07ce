package pretty

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/boostsecurityio/secretaudit/results"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
)

type reportWriter interface {
	Format(ctx context.Context, repos []results.Repository) error
}

// Format prints a summary table after the wrapped report has been written.
type Format struct {
	Out    io.Writer
	Report reportWriter
}

func NewFormat(out io.Writer, report reportWriter) *Format {
	return &Format{Out: out, Report: report}
}

func (f *Format) Format(ctx context.Context, repos []results.Repository) error {
	if f.Report != nil {
		if err := f.Report.Format(ctx, repos); err != nil {
			return err
		}
	}

	if len(repos) == 0 {
		log.Info().Msg("No repository exposes secrets to admins or maintainers")
	}

	return printSummaryTable(f.Out, repos)
}

func printSummaryTable(out io.Writer, repos []results.Repository) error {
	table := tablewriter.NewWriter(out)
	table.Header("Repository", "Visibility", "Secrets", "Admins", "Maintainers")

	for _, repo := range repos {
		visibility := "public"
		if repo.Private {
			visibility = "private"
		}

		err := table.Append([]string{
			repo.Name,
			visibility,
			fmt.Sprintf("%d", len(repo.Secrets)),
			strings.Join(repo.Logins(results.RoleAdmin), ", "),
			strings.Join(repo.Logins(results.RoleMaintainer), ", "),
		})
		if err != nil {
			return err
		}
	}

	fmt.Fprint(out, "\nRepositories with secrets and privileged collaborators:\n")
	return table.Render()
}
