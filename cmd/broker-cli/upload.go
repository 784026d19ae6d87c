package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/toitware/broker/client"
)

var uploadRecursive bool

var uploadCmd = &cobra.Command{
	Use:   "upload <local-path> <bucket/object>",
	Short: "Upload files to the gateway",
	Long: `Upload files to the gateway. Existing objects are replaced.

Examples:
  broker-cli upload ./firmware.bin firmware/dev-1/firmware.bin
  broker-cli upload -r ./pods/ assets/pods/`,
	Args: cobra.ExactArgs(2),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().BoolVarP(&uploadRecursive, "recursive", "r", false, "upload directory recursively")
}

func runUpload(cmd *cobra.Command, args []string) error {
	c, err := getClient()
	if err != nil {
		return err
	}

	results, err := c.Upload(cmd.Context(), client.UploadOptions{
		LocalPath:  args[0],
		RemotePath: args[1],
		Recursive:  uploadRecursive,
	})
	if err != nil {
		return err
	}

	if err := getFormatter().FormatUpload(os.Stdout, results); err != nil {
		return err
	}

	for i := range results {
		if results[i].Err != nil {
			return results[i].Err
		}
	}
	return nil
}
