package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opshub/backend/internal/dispatch"
)

func (a *app) evaluateCmd() *cobra.Command {
	var reply string
	cmd := &cobra.Command{
		Use:   "evaluate [transcript...]",
		Short: "Run the dispatch rules against a transcript without storing anything",
		Example: `  opsctl evaluate "there is a water leak in building A"
  opsctl evaluate --reply "This seems like a child's input." "fix the lights in building B"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			engine, err := dispatch.FromFile(cfg.RulesFile)
			if err != nil {
				return err
			}
			transcript := strings.Join(args, " ")
			if strings.TrimSpace(transcript) == "" {
				return fmt.Errorf("transcript is empty")
			}
			return printJSON(cmd.OutOrStdout(), engine.EvaluateWithReply(transcript, reply))
		},
	}
	cmd.Flags().StringVar(&reply, "reply", "", "assistant reply to check for the child-input marker")
	return cmd
}

func (a *app) rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect dispatch rules",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Print the effective rules as YAML, suitable as a starting RULES_FILE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			rules := dispatch.DefaultRules()
			if cfg.RulesFile != "" {
				if rules, err = dispatch.LoadRules(cfg.RulesFile); err != nil {
					return err
				}
			}
			if _, err := dispatch.New(rules); err != nil {
				return fmt.Errorf("rules do not compile: %w", err)
			}
			b, err := rules.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	})
	return cmd
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cfg, err := a.openStore(commandContext(cmd))
			if err != nil {
				return err
			}
			defer store.Close()
			a.logger.Info().Msg("schema applied")
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema applied to %s\n", redactURL(cfg.DatabaseURL))
			return err
		},
	}
}
