package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/toitware/broker/config"
	"github.com/toitware/broker/filesystem"
	"github.com/toitware/broker/local"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the local object index from the storage directory",
	Long: `Scan the local storage directory and record every object in the
object index. This is useful when:
  - Setting up the local backend with existing files
  - Recovering the index after database loss`,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	db, err := openIndex(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	root, err := openStorage(cfg.Local.StoragePath, false)
	if err != nil {
		return err
	}
	defer func() { _ = root.Close() }()

	slog.Info("scanning storage directory", "path", cfg.Local.StoragePath)

	n, err := local.Reindex(ctx, filesystem.NewFileStorage(root), db.GetIndex())
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}

	slog.Info("reindex complete", "objects_indexed", n)
	return nil
}
