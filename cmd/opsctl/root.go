package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opshub/backend/internal/config"
	"github.com/opshub/backend/internal/db"
	"github.com/opshub/backend/internal/service"
)

// app carries what subcommands share: the viper instance their flags are
// bound into and lazily opened resources.
type app struct {
	v      *viper.Viper
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:          "opsctl",
		Short:        "Operations hub dispatch administration",
		Long:         `opsctl evaluates transcripts against the dispatch rules and manages the technician directory and ticket store.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := zerolog.WarnLevel
			if s := a.v.GetString("LOG_LEVEL"); s != "" {
				if l, err := zerolog.ParseLevel(s); err == nil {
					level = l
				}
			}
			a.logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen}).
				Level(level).With().Timestamp().Str("service", "opsctl").Logger()
			return nil
		},
	}

	root.PersistentFlags().String("database-url", "", "database URL (postgres://..., sqlite://path or sqlite::memory:)")
	root.PersistentFlags().String("rules", "", "YAML rules file overriding the built-in dispatch rules")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	_ = a.v.BindPFlag("DATABASE_URL", root.PersistentFlags().Lookup("database-url"))
	_ = a.v.BindPFlag("RULES_FILE", root.PersistentFlags().Lookup("rules"))
	_ = a.v.BindPFlag("LOG_LEVEL", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(
		a.evaluateCmd(),
		a.rulesCmd(),
		a.migrateCmd(),
		a.techniciansCmd(),
		a.ticketsCmd(),
	)
	return root
}

func (a *app) config() (config.Config, error) {
	return config.LoadFrom(a.v)
}

// openStore opens and migrates the configured database. The caller closes it.
func (a *app) openStore(ctx context.Context) (db.Repository, config.Config, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, config.Config{}, err
	}
	store, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("open database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, config.Config{}, err
	}
	return store, cfg, nil
}

func (a *app) dispatcher(store db.Repository, cfg config.Config) *service.Dispatcher {
	return &service.Dispatcher{
		Store:             store,
		Logger:            a.logger,
		PersistUnassigned: cfg.PersistUnassigned,
	}
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
