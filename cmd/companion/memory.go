package main

import (
	"fmt"

	"github.com/sandevgo/companion/internal/config"
	"github.com/sandevgo/companion/internal/service/memory"
	"github.com/spf13/cobra"
)

const memoryTurnsShown = 10

var (
	memPersona string
	memUser    string
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect or reset stored persona memory",
}

var memoryShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print core memory and the latest turns",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMemory(cmd, func(mem *memory.Store, persona string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "persona: %s\nuser: %s\n\n", persona, memUser)
			fmt.Fprintf(out, "core memory:\n%s\n\n", orEmpty(mem.GetCoreMemory(ctx, persona, memUser)))

			turns := mem.RecentTurns(ctx, persona, memUser, memoryTurnsShown)
			fmt.Fprintf(out, "recent turns (%d):\n", len(turns))
			for _, t := range turns {
				fmt.Fprintf(out, "[%s]\nUser: %s\nReply: %s\n\n", t.Timestamp, t.User, t.Bot)
			}
			return nil
		})
	},
}

var memoryResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the short-term turn log",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMemory(cmd, func(mem *memory.Store, persona string) error {
			if err := mem.ResetShortTerm(cmd.Context(), persona, memUser); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "short-term memory reset")
			return nil
		})
	},
}

var memoryClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the core memory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMemory(cmd, func(mem *memory.Store, persona string) error {
			if err := mem.ClearCore(cmd.Context(), persona, memUser); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "core memory cleared")
			return nil
		})
	},
}

// withMemory opens the configured backend without a language model, so
// no consolidation can run.
func withMemory(cmd *cobra.Command, fn func(mem *memory.Store, persona string) error) error {
	ctx, flushLog := setupLogger(cmd.Context())
	defer flushLog()
	cmd.SetContext(ctx)

	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		return err
	}
	appCfg := config.NewAppConfig(ctx)

	store, err := initStorage(ctx, appCfg)
	if err != nil {
		return err
	}
	defer store.close()

	persona := memPersona
	if persona == "" {
		persona = appCfg.Persona
	}
	mem := memory.NewStore(store.kv, nil, memory.Options{MaxGroups: appCfg.GetMaxGroups()})
	return fn(mem, persona)
}

func orEmpty(s string) string {
	if s == "" {
		return "(empty)"
	}
	return s
}

func init() {
	memoryCmd.PersistentFlags().StringVar(&memPersona, "persona", "", "persona name (defaults to COMPANION_PERSONA)")
	memoryCmd.PersistentFlags().StringVar(&memUser, "user", "", "user or chat id")
	_ = memoryCmd.MarkPersistentFlagRequired("user")

	memoryCmd.AddCommand(memoryShowCmd, memoryResetCmd, memoryClearCmd)
	rootCmd.AddCommand(memoryCmd)
}
