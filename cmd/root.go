package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/askbatch/internal/chat"
	"github.com/xkilldash9x/askbatch/internal/config"
	"github.com/xkilldash9x/askbatch/internal/observability"
	"github.com/xkilldash9x/askbatch/internal/report"
)

// flagKeys maps command line flags to the configuration keys they override.
var flagKeys = map[string]string{
	"input":         "batch.path",
	"sheet":         "batch.sheet",
	"column":        "batch.question_column",
	"output-column": "batch.output_column",
	"checkpoint":    "batch.checkpoint",
	"url":           "surface.url",
	"headless":      "browser.headless",
	"user-data-dir": "browser.user_data_dir",
	"chrome-path":   "browser.exec_path",
	"log-level":     "logger.level",
}

// NewRootCommand builds the askbatch command tree with its own viper instance.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	var cfgFile, summaryFormat string

	rootCmd := &cobra.Command{
		Use:   "askbatch",
		Short: "Ask a chat assistant every question in a spreadsheet and record the answers.",
		Long: `askbatch opens a chat page in Chrome, submits each question from a CSV or
XLSX column one at a time, and writes every reply into an output column of
the same file.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			for flag, key := range flagKeys {
				if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return fmt.Errorf("failed to bind flag --%s: %w", flag, err)
				}
			}
			switch summaryFormat {
			case report.FormatText, report.FormatJSON:
				return nil
			default:
				return fmt.Errorf("unsupported summary format %q: use text or json", summaryFormat)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			config.SetDefaults(v)
			if err := initializeConfig(v, cfgFile); err != nil {
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}

			observability.InitializeLogger(cfg.Logger)
			logger := observability.GetLogger()
			logger.Info("Starting askbatch", zap.String("version", Version))

			return runBatch(cmd.Context(), cfg, cmd.OutOrStdout(), summaryFormat, logger)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	flags := rootCmd.Flags()
	flags.StringP("input", "i", "", "CSV or XLSX file holding the questions")
	flags.String("sheet", "", "XLSX worksheet (default is the first sheet)")
	flags.Int("column", 3, "0-based index of the question column")
	flags.String("output-column", "", "header of the column that receives the answers")
	flags.Bool("checkpoint", false, "save the file after every answer")
	flags.StringP("url", "u", "", "address of the chat surface")
	flags.Bool("headless", false, "run Chrome without a window")
	flags.String("user-data-dir", "", "Chrome user data directory holding a signed-in profile")
	flags.String("chrome-path", "", "Chrome or Chromium executable")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&summaryFormat, "summary", report.FormatText, "summary format printed after the run (text or json)")

	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the root command with a signal-aware context. The error is
// logged here; the caller only maps it to an exit code.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	if err == nil {
		return nil
	}

	logger := observability.GetLogger()
	switch {
	case errors.Is(err, context.Canceled):
		logger.Warn("Run interrupted; outcomes gathered so far were saved.")
	case errors.Is(err, chat.ErrNoInputControl):
		logger.Error("Run aborted: the chat input never appeared. Check that the profile is signed in.", zap.Error(err))
	default:
		logger.Error("Command execution failed", zap.Error(err))
	}
	return err
}

// initializeConfig reads the config file and ASKBATCH_* environment variables.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("ASKBATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults, env and flags still apply.
	}
	return nil
}
