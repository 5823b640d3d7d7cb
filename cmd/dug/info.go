package main

import (
	"fmt"

	"github.com/caldwell-labs/fsindex/internal/entry"
	"github.com/caldwell-labs/fsindex/internal/index"
	"github.com/caldwell-labs/fsindex/internal/snapshot"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print a snapshot's generation id and entry counts",
	RunE:  runInfo,
}

var infoSnapshot string

func init() {
	infoCmd.Flags().StringVarP(&infoSnapshot, "db", "d", "./index.fsdb", "Snapshot file to inspect")
}

func runInfo(cmd *cobra.Command, args []string) error {
	log := newLogger()
	defer log.Sync()

	st := index.New(0, log)
	pool := entry.NewPool()
	info, err := snapshot.Load(st, pool, infoSnapshot, log)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	fmt.Printf("Snapshot Information\n")
	fmt.Printf("=====================\n\n")
	fmt.Printf("Generation ID: %s\n", info.GenerationID)
	fmt.Printf("Files:         %s\n", humanize.Comma(int64(info.NumFiles)))
	fmt.Printf("Folders:       %s\n", humanize.Comma(int64(info.NumFolders)))
	return nil
}
