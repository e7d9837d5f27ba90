package main

import (
	"errors"

	"github.com/matt-steen/taskflow/pkg/accounts"
	"github.com/matt-steen/taskflow/pkg/controller"
	"github.com/matt-steen/taskflow/pkg/notify"
	"github.com/matt-steen/taskflow/pkg/workflow"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const boardLogFile = "taskflow-board.log"

func (c *cli) boardCmd() *cobra.Command {
	var appAcronym, username string

	cmd := &cobra.Command{
		Use:   "board",
		Short: "Work on the tasks of an application in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if appAcronym == "" || username == "" {
				return errors.New("--app and --user are required")
			}

			closer, err := c.setupLogging(boardLogFile)
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

			password, err := readPassword("Password: ")
			if err != nil {
				return err
			}

			accountService := accounts.NewService(database)

			acc, err := accountService.Authenticate(ctx, username, password)
			if err != nil {
				return err
			}

			engine := workflow.New(database, accountService,
				workflow.WithNotifier(notify.New(c.cfg.Mail(), c.cfg.SMTP.Timeout)))

			board, err := controller.NewController(ctx, engine, acc.Username, appAcronym)
			if err != nil {
				return err
			}

			log.Info().Str("user", acc.Username).Str("app", appAcronym).Msg("starting board")

			return board.Go()
		},
	}

	cmd.Flags().StringVar(&appAcronym, "app", "", "application acronym")
	cmd.Flags().StringVar(&username, "user", "", "username")

	return cmd
}
