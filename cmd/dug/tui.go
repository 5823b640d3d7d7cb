package main

import (
	"fmt"

	"github.com/caldwell-labs/fsindex/internal/store"
	"github.com/caldwell-labs/fsindex/internal/tui"
	"github.com/caldwell-labs/fsindex/internal/workerpool"
	"github.com/spf13/cobra"

	tea "github.com/charmbracelet/bubbletea"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse a snapshot interactively",
	Long:  `Opens an interactive browser over a snapshot file: type a query, sort by any field, select rows.`,
	RunE:  runTUI,
}

var tuiSnapshot string

func init() {
	tuiCmd.Flags().StringVarP(&tuiSnapshot, "db", "d", "./index.fsdb", "Snapshot file to browse")
}

func runTUI(cmd *cobra.Command, args []string) error {
	log := newLogger()
	defer log.Sync()

	db := store.New(log, workerpool.New(0))
	defer db.Close()

	loadDone := make(chan store.Event, 1)
	unsub := db.Events().Subscribe(func(ev store.Event) {
		if ev.Kind == store.EventLoadFinished {
			select {
			case loadDone <- ev:
			default:
			}
		}
	})
	db.LoadFromFile(tuiSnapshot)
	ev := <-loadDone
	unsub()
	if ev.DBInfo != nil && ev.DBInfo.Err != nil {
		return fmt.Errorf("load snapshot: %w", ev.DBInfo.Err)
	}

	model := tui.NewModel(db)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
