package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/boostsecurityio/secretaudit/audit"
	"github.com/boostsecurityio/secretaudit/formatters/json"
	"github.com/boostsecurityio/secretaudit/formatters/noop"
	"github.com/boostsecurityio/secretaudit/formatters/pretty"
	"github.com/boostsecurityio/secretaudit/models"
	"github.com/boostsecurityio/secretaudit/providers/scm"
	"github.com/boostsecurityio/secretaudit/providers/scm/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var Format string
var Verbose bool
var ScmBaseURL scm_domain.ScmBaseDomain
var (
	Version string
	Commit  string
	Date    string
)
var cfgFile string
var outputFile string
var showProgress bool
var dryRun bool

const (
	exitCodeErr       = 1
	exitCodeInterrupt = 2
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "secretaudit",
	Short: "Lists repositories whose Actions secrets are reachable by admins and maintainers",
	Long: `Lists repositories whose Actions secrets are reachable by admins and maintainers

Reads access_token and org_name from github_config.json and writes
repos_with_secrets_and_collaborators.json. Run without arguments.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		if Verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
		output := zerolog.ConsoleWriter{Out: os.Stderr}
		output.FormatLevel = func(i interface{}) string {
			return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
		}
		log.Logger = log.Output(output)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		config, err := models.LoadConfig(cfgFile)
		if err != nil {
			return err
		}

		auditor, err := GetAuditor(ctx, config)
		if err != nil {
			return err
		}

		log.Info().Msgf("Auditing %s on %s", config.OrgName, auditor.ScmClient.GetProviderName())
		if err := auditor.AuditOrg(ctx, config.OrgName); err != nil {
			return fmt.Errorf("failed to audit org %s: %w", config.OrgName, err)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx := context.Background()
	ctx, cancel := context.WithCancel(ctx)
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(signalChan)
		cancel()
	}()

	go func() {
		select {
		case <-signalChan: // first signal, cancel context
			log.Warn().Msg("Interrupted, no report will be written")
			cancel()
		case <-ctx.Done():
			return
		}
		<-signalChan // second signal, hard exit
		os.Exit(exitCodeInterrupt)
	}()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		log.Error().Err(err).Msg("")
		os.Exit(exitCodeErr)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", models.DefaultConfigFile, "config file holding access_token and org_name")
	rootCmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.Flags().StringVarP(&outputFile, "output", "o", models.DefaultOutputFile, "Report file")
	rootCmd.Flags().StringVarP(&Format, "format", "f", "json", "Output format (json, pretty)")
	rootCmd.Flags().VarP(&ScmBaseURL, "scm-base-url", "b", "Base URL of a self-hosted SCM instance, overrides base_url from the config (optional)")
	rootCmd.Flags().BoolVar(&showProgress, "progress", false, "Show a progress bar on stderr (sizing it costs one GraphQL call on GitHub)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Scan without writing the report")
}

func GetFormatter() audit.Formatter {
	if dryRun {
		return &noop.Format{}
	}

	report := json.NewFormat(outputFile)
	switch Format {
	case "pretty":
		return pretty.NewFormat(os.Stdout, report)
	case "json":
		return report
	}
	log.Warn().Msgf("Unknown format %q, falling back to json", Format)
	return report
}

func GetAuditor(ctx context.Context, config *models.Config) (*audit.Auditor, error) {
	baseURL := scm_domain.Resolve(config.Scm, ScmBaseURL.String(), config.BaseURL)
	scmClient, err := scm.NewScmClient(ctx, config.Scm, baseURL, config.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create SCM client: %w", err)
	}

	auditor := audit.NewAuditor(scmClient, GetFormatter())
	if !showProgress {
		auditor.Progress = io.Discard
	}
	return auditor, nil
}
