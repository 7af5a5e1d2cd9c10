package cli

import (
	"context"
	"fmt"

	"recruitflow/internal/common"
	"recruitflow/internal/config"
	"recruitflow/internal/errors"

	"github.com/spf13/cobra"
)

// Define custom private types for context keys.
type configKeyType struct{}
type loggerKeyType struct{}

// Use variables of these types as the keys.
var configKey = configKeyType{}
var loggerKey = loggerKeyType{}

// offline skips the model service for every command.
var offline bool

var rootCmd = &cobra.Command{
	Use:   "recruitflow",
	Short: "Screen CVs against a job requirement",
	Long: `Recruitflow parses candidate CVs, scores them against a job requirement,
shortlists the strongest candidates and prepares interview questions and
email drafts for them.

Run the whole pipeline with "run", or a single stage with "parse", "score"
and "shortlist". "serve", "watch" and "worker" run it as a service.`,
	SilenceUsage: true,
}

// Execute runs the root command with config and logger available to every subcommand.
func Execute(ctx context.Context, cfg *config.Config, logger *errors.Logger) error {
	ctx = context.WithValue(ctx, configKey, cfg)
	ctx = context.WithValue(ctx, loggerKey, logger)
	rootCmd.SetContext(ctx)
	return rootCmd.Execute()
}

// getConfigFromContext is a helper function to get config from context
func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok {
		return cfg, nil
	}
	return nil, fmt.Errorf("config not found in context")
}

// getLoggerFromContext is a helper function to get logger from context
func getLoggerFromContext(ctx context.Context) (*errors.Logger, error) {
	if logger, ok := ctx.Value(loggerKey).(*errors.Logger); ok {
		return logger, nil
	}
	return nil, fmt.Errorf("logger not found in context")
}

// newRuntime builds the runtime of a command from the context.
func newRuntime(cmd *cobra.Command, opts common.RuntimeOptions) (*common.Runtime, error) {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return nil, err
	}
	logger, err := getLoggerFromContext(cmd.Context())
	if err != nil {
		return nil, err
	}
	opts.Version = Version
	opts.Offline = opts.Offline || offline
	return common.NewRuntime(cmd.Context(), cfg, logger, opts)
}

// addOutputFlags registers --output and --format on cmd.
func addOutputFlags(cmd *cobra.Command, target *common.CommandConfig) {
	cmd.Flags().StringVarP(&target.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&target.OutputFormat, "format", "", "Output format: json, text, or markdown")

	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg, err := getConfigFromContext(cmd.Context())
		if err != nil {
			return []string{}, cobra.ShellCompDirectiveError
		}
		return common.GetSupportedFormats(cfg.App.SupportedFormats), cobra.ShellCompDirectiveNoFileComp
	})
}

// resolveFormat applies the default format and validates it.
func resolveFormat(cmd *cobra.Command, target *common.CommandConfig) error {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return err
	}
	if target.OutputFormat == "" {
		target.OutputFormat = cfg.App.DefaultFormat
	}
	return common.ValidateOutputFormat(target.OutputFormat, cfg.App.SupportedFormats)
}

// closeRuntime releases rt with a context that outlives the command's.
func closeRuntime(cmd *cobra.Command, rt *common.Runtime) {
	rt.Close(context.WithoutCancel(cmd.Context()))
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "Run without the model service (pattern extraction, default assessments)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(shortlistCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(versionCmd)
}
