package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/caseforge-backend/internal/app"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:           "caseforge",
	Short:         "EB-1A evidence evaluation backend",
	SilenceErrors: true,
	SilenceUsage:  true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(configFile)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.Start(); err != nil {
			return err
		}

		errCh := make(chan error, 1)
		go func() { errCh <- a.Run() }()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		select {
		case err := <-errCh:
			return err
		case s := <-sig:
			a.Log.Info("Shutting down", "signal", s.String())
			return nil
		}
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.Migrate(configFile)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "optional YAML config file; environment variables take precedence")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
