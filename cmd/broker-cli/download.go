package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/toitware/broker/client"
)

var (
	downloadOutput string
	downloadStdout bool
	downloadOffset int64
	downloadPublic bool
)

var downloadCmd = &cobra.Command{
	Use:   "download <bucket/object> [local-path]",
	Short: "Download an object from the gateway",
	Long: `Download an object from the gateway.

Offsets are only honored for public objects: combine --offset with --public
to resume a download. The received bytes are appended to the local file.

Examples:
  broker-cli download firmware/dev-1/firmware.bin
  broker-cli download --public --offset 4096 assets/pod.bin ./pod.bin
  broker-cli download --stdout assets/spec.json | jq .`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "output file path")
	downloadCmd.Flags().BoolVar(&downloadStdout, "stdout", false, "write to stdout")
	downloadCmd.Flags().Int64Var(&downloadOffset, "offset", 0, "first byte to fetch")
	downloadCmd.Flags().BoolVar(&downloadPublic, "public", false, "fetch through the public URL")
}

func runDownload(cmd *cobra.Command, args []string) error {
	localPath := ""
	if len(args) > 1 {
		localPath = args[1]
	}
	if downloadOutput != "" {
		localPath = downloadOutput
	}
	if downloadStdout {
		localPath = "-"
	}

	c, err := getClient()
	if err != nil {
		return err
	}

	result, reader, err := c.Download(cmd.Context(), client.DownloadOptions{
		RemotePath: args[0],
		LocalPath:  localPath,
		Offset:     downloadOffset,
		Public:     downloadPublic,
	})
	if err != nil {
		return err
	}

	if reader != nil {
		defer func() { _ = reader.Close() }()
		n, err := io.Copy(os.Stdout, reader)
		if err != nil {
			return err
		}
		result.Size = n
		// Metadata goes to stderr so stdout stays the object.
		if jsonOutput {
			return getFormatter().FormatDownload(os.Stderr, result)
		}
		return nil
	}

	return getFormatter().FormatDownload(os.Stdout, result)
}
