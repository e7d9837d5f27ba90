// Command taskflow serves the task workflow API and the terminal board.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/matt-steen/taskflow/pkg/accounts"
	"github.com/matt-steen/taskflow/pkg/config"
	"github.com/matt-steen/taskflow/pkg/db"
	"github.com/matt-steen/taskflow/pkg/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var version = "dev"

// cli holds the state shared by the subcommands.
type cli struct {
	v          *viper.Viper
	configPath string
	cfg        *config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{v: config.New()}

	root := &cobra.Command{
		Use:          "taskflow",
		Short:        "Task workflow service with applications, plans and a five-state task board",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.v, c.configPath)
			if err != nil {
				return err
			}

			c.cfg = cfg

			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "path to a YAML config file")
	flags.String("db-driver", "", "database driver: sqlite3 or mysql")
	flags.String("db-path", "", "sqlite database file")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-file", "", "write the log to this file instead of stderr")

	for key, flag := range map[string]string{
		"db.driver": "db-driver",
		"db.path":   "db-path",
		"log.level": "log-level",
		"log.file":  "log-file",
	} {
		_ = c.v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(c.serveCmd(), c.boardCmd(), c.migrateCmd(), c.createAdminCmd())

	return root
}

// setupLogging configures the global logger. fallbackFile is used when no log file is
// configured; the board needs one because the terminal belongs to the UI.
func (c *cli) setupLogging(fallbackFile string) (io.Closer, error) {
	file := c.cfg.Log.File
	if file == "" {
		file = fallbackFile
	}

	return logging.Setup(logging.Options{
		Level: c.cfg.Log.Level,
		File:  file,
		JSON:  c.cfg.Log.JSON,
	})
}

func (c *cli) openDatabase(ctx context.Context) (*db.Database, error) {
	database, err := db.NewDatabase(ctx, c.cfg.Database())
	if err != nil {
		return nil, fmt.Errorf("error opening the database: %w", err)
	}

	return database, nil
}

// ensureAdmin creates the admin account on an empty database when a password is configured.
func (c *cli) ensureAdmin(ctx context.Context, service *accounts.Service) error {
	if c.cfg.Admin.Password == "" {
		return nil
	}

	created, err := service.EnsureAdmin(ctx, c.cfg.Admin.Password)
	if err != nil {
		return fmt.Errorf("error creating the admin account: %w", err)
	}

	if created {
		log.Info().Str("user", accounts.AdminUsername).Msg("admin account ready")
	}

	return nil
}

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)

	if err != nil {
		return "", fmt.Errorf("error reading password: %w", err)
	}

	return string(pw), nil
}
