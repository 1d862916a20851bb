package main

import (
	"github.com/sandevgo/companion/configs"
	"github.com/sandevgo/companion/internal/config"
	"github.com/sandevgo/companion/internal/service/installer"
	"github.com/sandevgo/companion/pkg/log"
	"github.com/spf13/cobra"
)

var (
	initPersona string
	initForce   bool
)

var initCmd = &cobra.Command{
	Use:           "init",
	Short:         "Create the runtime directory with default prompts and .env",
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		logger := log.FromCtx(ctx)
		logger.Info().Msg("initializing runtime directory")

		appCfg := config.NewAppConfig(ctx)
		if initPersona != "" {
			appCfg.Persona = initPersona
		}
		llmCfg := config.NewLLMConfig(ctx)
		behaviorCfg := config.NewBehaviorConfig(ctx)

		res, err := installer.Install(ctx, configs.FS, installer.Options{
			RuntimePath: appCfg.GetRuntimePath(),
			Persona:     appCfg.Persona,
			Force:       initForce,
			Configs:     []any{appCfg, llmCfg, behaviorCfg},
		})
		if err != nil {
			return err
		}

		for _, path := range res.Skipped {
			logger.Warn().Str("path", path).Msg("file exists, kept (use --force to overwrite)")
		}
		logger.Info().Msg("Runtime directory ready. Edit the .env file, then run 'companion start'.")
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initPersona, "persona", "", "name of the persona directory to create")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing files")
	rootCmd.AddCommand(initCmd)
}
