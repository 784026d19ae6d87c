package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/toitware/broker/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "broker",
	Short:   "Single-endpoint command gateway for device fleets",
	Long: `broker serves the binary command protocol used by devices and
tooling: one POST endpoint carrying uploads, downloads and procedure
calls, answered by Supabase or by a local storage and PostgreSQL backend.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var files []string
		if f, _ := cmd.Flags().GetString("config"); f != "" {
			files = append(files, f)
		}

		cfg, err := config.Load(files, cmd.Flags())
		if err != nil {
			return err
		}

		setupLogging(cfg)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("backend", "", "backend: supabase, local (default: local, env: BROKER_BACKEND_TYPE)")
	rootCmd.PersistentFlags().String("storage-path", "", "local storage directory (default: ./data, env: BROKER_LOCAL_STORAGE_PATH)")
	rootCmd.PersistentFlags().String("db-type", "", "object index database: sqlite, postgres (default: sqlite, env: BROKER_LOCAL_DATABASE_TYPE)")
	rootCmd.PersistentFlags().String("db-dsn", "", "object index connection string (default: broker.db, env: BROKER_LOCAL_DATABASE_DSN)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env: BROKER_LOG_LEVEL)")
	rootCmd.PersistentFlags().String("env", "", "dev or prod; prod logs JSON (env: BROKER_SERVER_ENV)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
