package main

import (
	"fmt"

	"github.com/sandevgo/companion/internal/config"
	"github.com/sandevgo/companion/pkg/env"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as .env lines",
	Long:  `Prints the configuration the start command would use. Secrets are masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
			return err
		}

		sections := []struct {
			title string
			cfg   any
		}{
			{"app", config.NewAppConfig(ctx)},
			{"llm", config.NewLLMConfig(ctx)},
			{"behavior", config.NewBehaviorConfig(ctx)},
			{"http", config.NewHTTPConfig(ctx)},
		}

		out := cmd.OutOrStdout()
		for _, s := range sections {
			content, err := env.MarshalEnvMasked(s.cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "# %s\n%s\n", s.title, content)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
