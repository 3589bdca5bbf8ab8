package engine

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	command "github.com/platzio/platz-engine/internal/cmd"
	"github.com/platzio/platz-engine/internal/store"
)

type MigrateCommand struct {
	DatabaseURL string `usage:"Postgres connection URL" env:"DATABASE_URL"`
}

// Run applies pending migrations and exits. The server applies them on
// startup too; this exists for running migrations separately, e.g. from an
// init container.
func (m *MigrateCommand) Run(cmd *cobra.Command, _ []string) error {
	s, err := store.New(cmd.Context(), m.DatabaseURL)
	if err != nil {
		return err
	}
	s.Close()
	logrus.Info("Migrations applied")
	return nil
}

func migrateCommand() *cobra.Command {
	return command.Command(&MigrateCommand{}, cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
	})
}
