package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/fjod/pawmart/internal/repository"
)

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending PostgreSQL migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := rootOpts.setup()
			if err != nil {
				return err
			}
			if dir != "" {
				cfg.DB.MigrationsDirPath = dir
			}

			repo, err := repository.NewRepository(cmd.Context(), &cfg.DB)
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.RunMigrations(&cfg.DB); err != nil {
				return err
			}
			log.Info("migrations applied", slog.String("dir", cfg.DB.MigrationsDirPath))
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "migrations directory (default MIGRATIONS_PATH)")
	return cmd
}
