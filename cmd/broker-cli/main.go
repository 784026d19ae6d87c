package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/toitware/broker/client"
)

var (
	version = "dev"

	cfgFile     string
	profileName string
	endpoint    string
	token       string
	jsonOutput  bool
	quiet       bool
)

var rootCmd = &cobra.Command{
	Use:     "broker-cli",
	Version: version,
	Short:   "Client for the broker command gateway",
	Long: `broker-cli sends commands to a broker gateway.

Every command is one POST of a command envelope to the gateway endpoint:
  - upload:   store files under bucket/object
  - download: fetch an object, optionally from an offset through its public URL
  - call:     run a device or pod registry procedure
  - commands: list the commands the gateway understands

Connection settings come from a profile (~/.broker/config.yaml), the
BROKER_ENDPOINT and BROKER_TOKEN environment variables, or flags.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.broker/config.yaml, env: BROKER_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&profileName, "profile", "p", "", "profile name (env: BROKER_PROFILE)")
	rootCmd.PersistentFlags().StringVarP(&endpoint, "endpoint", "e", "", "gateway URL (default: "+client.DefaultEndpoint+", env: BROKER_ENDPOINT)")
	rootCmd.PersistentFlags().StringVarP(&token, "token", "t", "", "bearer token (env: BROKER_TOKEN)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(commandsCmd)
	rootCmd.AddCommand(configureCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		_ = getFormatter().FormatError(os.Stderr, err)
		os.Exit(1)
	}
}

// getConfigPath returns the config file from the flag, the environment or
// the default location.
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if p := client.ConfigPathFromEnv(); p != "" {
		return p
	}
	return client.DefaultConfigPath()
}

// buildConfig merges the selected profile, env vars and flags (flags take
// precedence).
func buildConfig() (*client.Config, error) {
	var configs []*client.Config

	name := profileName
	if name == "" {
		name = client.ProfileFromEnv()
	}

	cf, err := client.LoadConfigFile(getConfigPath())
	switch {
	case err == nil:
		p, profileErr := cf.GetProfile(name)
		if profileErr == nil {
			configs = append(configs, client.ConfigFromProfile(p))
		} else if name != "" {
			return nil, profileErr
		}
	case name != "" || cfgFile != "":
		// A missing file only matters when it was asked for.
		return nil, err
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}

	configs = append(configs,
		client.ConfigFromEnv(),
		&client.Config{Endpoint: endpoint, Token: token},
	)

	return client.MergeConfig(configs...), nil
}

// getFormatter returns the appropriate formatter based on flags.
func getFormatter() client.Formatter {
	return client.NewFormatter(jsonOutput, quiet)
}

// getClient creates and returns a configured client.
func getClient() (*client.Client, error) {
	cfg, err := buildConfig()
	if err != nil {
		return nil, err
	}
	return client.New(cfg)
}

// readParams returns the JSON parameters from an argument, "-" for stdin,
// or nothing.
func readParams(args []string, stdin io.Reader) ([]byte, error) {
	if len(args) == 0 {
		return nil, nil
	}
	if args[0] != "-" {
		return []byte(args[0]), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("read parameters: %w", err)
	}
	return data, nil
}
