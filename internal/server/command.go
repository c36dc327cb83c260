package server

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/goalboard/internal/dbx"
	"github.com/dmitrijs2005/goalboard/internal/logging"
	"github.com/dmitrijs2005/goalboard/internal/server/config"
	"github.com/dmitrijs2005/goalboard/internal/server/migrations"
)

// NewCommand builds the goalboard-server command tree.
func NewCommand() *cobra.Command {
	var (
		configPath string
		cfg        *config.Config
		logger     logging.Logger
	)

	cmd := &cobra.Command{
		Use:           "goalboard-server",
		Short:         "Authoritative record store for goalboard clients",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			c, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			l, err := logging.New(c.LogLevel, c.LogFormat, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cfg, logger = c, l
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := NewApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			app.Run(cmd.Context())
			return app.Close()
		},
	}

	fs := cmd.PersistentFlags()
	fs.StringVarP(&configPath, "config", "c", "", "path to a TOML config file")
	config.RegisterFlags(fs)

	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.Memory {
				return errors.New("nothing to migrate for an in-memory store")
			}
			db, err := dbx.Open(cmd.Context(), "pgx", cfg.DatabaseDSN, migrations.Migrations, "pgx")
			if err != nil {
				return err
			}
			logger.Info(cmd.Context(), "migrations applied")
			return db.Close()
		},
	})
	return cmd
}
