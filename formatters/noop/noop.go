package noop

import (
	"context"

	"github.com/boostsecurityio/secretaudit/results"
)

// Format discards the report. Used by --dry-run.
type Format struct {
}

func (f *Format) Format(ctx context.Context, repos []results.Repository) error {
	return nil
}
