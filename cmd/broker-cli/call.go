package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/toitware/broker"
	"github.com/toitware/broker/client"
)

var callCmd = &cobra.Command{
	Use:   "call <command> [json|-]",
	Short: "Run a procedure command",
	Long: `Run a procedure command with JSON parameters.

The command is given by name or numeric id (see 'broker-cli commands').
Parameters are passed through unchanged; "-" reads them from stdin.

Examples:
  broker-cli call get-goal '{"_device_id":"6f1c..."}'
  broker-cli call 4 '{"_organization_id":"..."}'
  cat event.json | broker-cli call report-event -`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCall,
}

var commandsSchema string

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List the commands the gateway understands",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return getFormatter().FormatCommands(os.Stdout, client.ListCommands(commandsSchema))
	},
}

func init() {
	commandsCmd.Flags().StringVar(&commandsSchema, "schema", broker.DefaultSchema, "schema qualifying procedure names")
}

func runCall(cmd *cobra.Command, args []string) error {
	command, err := broker.ParseCommand(args[0])
	if err != nil {
		return err
	}

	params, err := readParams(args[1:], cmd.InOrStdin())
	if err != nil {
		return err
	}

	c, err := getClient()
	if err != nil {
		return err
	}

	result, err := c.Call(cmd.Context(), command, params)
	if err != nil {
		return err
	}

	return getFormatter().FormatCall(os.Stdout, result)
}
