package json

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/boostsecurityio/secretaudit/results"
	"github.com/rs/zerolog/log"
)

const indent = "    "

// Format writes the report to Path once the whole result is known.
type Format struct {
	Path string
}

func NewFormat(path string) *Format {
	return &Format{Path: path}
}

func (f *Format) Format(ctx context.Context, repos []results.Repository) error {
	var buf bytes.Buffer
	if err := Encode(&buf, repos); err != nil {
		return err
	}

	if err := os.WriteFile(f.Path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", f.Path, err)
	}

	log.Info().Str("path", f.Path).Int("repositories", len(repos)).Msg("Report written")
	return nil
}

// Encode writes repos as a JSON array indented by four spaces. A nil slice encodes as [].
func Encode(out io.Writer, repos []results.Repository) error {
	if repos == nil {
		repos = []results.Repository{}
	}

	normalized := make([]results.Repository, len(repos))
	for i, repo := range repos {
		if repo.Secrets == nil {
			repo.Secrets = []string{}
		}
		if repo.Collaborators == nil {
			repo.Collaborators = []results.Collaborator{}
		}
		normalized[i] = repo
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", indent)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(normalized); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}
