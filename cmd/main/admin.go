package main

import (
	"fmt"

	"github.com/matt-steen/taskflow/pkg/accounts"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			closer, err := c.setupLogging("")
			if err != nil {
				return err
			}
			defer closer.Close()

			database, err := c.openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()

			log.Info().Str("driver", database.Driver()).Msg("schema is up to date")

			return nil
		},
	}
}

func (c *cli) createAdminCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-admin",
		Short: "Create the admin account on an empty database",
		Long: `Create the admin account on an empty database. The password comes from
admin.password (TASKFLOW_ADMIN_PASSWORD) or is prompted for.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			closer, err := c.setupLogging("")
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx := cmd.Context()

			database, err := c.openDatabase(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			if c.cfg.Admin.Password == "" {
				if c.cfg.Admin.Password, err = readPassword("Admin password: "); err != nil {
					return err
				}
			}

			service := accounts.NewService(database)

			created, err := service.EnsureAdmin(ctx, c.cfg.Admin.Password)
			if err != nil {
				return fmt.Errorf("error creating the admin account: %w", err)
			}

			if !created {
				fmt.Fprintln(cmd.OutOrStdout(), "accounts already exist, nothing to do")

				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created account %s\n", accounts.AdminUsername)

			return nil
		},
	}
}
