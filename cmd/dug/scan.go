package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/caldwell-labs/fsindex/internal/exclude"
	"github.com/caldwell-labs/fsindex/internal/pathutil"
	"github.com/caldwell-labs/fsindex/internal/scan"
	"github.com/caldwell-labs/fsindex/internal/store"
	"github.com/caldwell-labs/fsindex/internal/workerpool"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Index a directory tree and write a snapshot",
	Long:  `Recursively scans one or more root directories into an in-memory index and saves it to a snapshot file.`,
	RunE:  runScan,
}

var (
	scanRoots        []string
	scanOut          string
	scanOneFS        bool
	scanExcludePaths []string
	scanExcludeFiles []string
	scanExcludeDirs  []string
	scanExcludeHide  bool
	scanMaxErrors    int
	scanWatch        bool
)

func init() {
	scanCmd.Flags().StringSliceVarP(&scanRoots, "root", "r", []string{"."}, "Root directory to scan (repeatable)")
	scanCmd.Flags().StringVarP(&scanOut, "out", "o", "./index.fsdb", "Snapshot output path")
	scanCmd.Flags().BoolVar(&scanOneFS, "one-filesystem", false, "Don't cross filesystem boundaries")
	scanCmd.Flags().StringSliceVar(&scanExcludePaths, "exclude-path", nil, "Absolute path to exclude (repeatable)")
	scanCmd.Flags().StringSliceVar(&scanExcludeFiles, "exclude-file", nil, "Glob pattern excluding file basenames (repeatable)")
	scanCmd.Flags().StringSliceVar(&scanExcludeDirs, "exclude-dir", nil, "Glob pattern excluding directory basenames (repeatable)")
	scanCmd.Flags().BoolVar(&scanExcludeHide, "exclude-hidden", false, "Exclude dotfiles and dotdirs")
	scanCmd.Flags().IntVar(&scanMaxErrors, "max-errors", 0, "Has no effect: the scan does not stop early on errors")
	scanCmd.Flags().BoolVar(&scanWatch, "watch", false, "Keep watching the roots for changes after the scan finishes")
}

func runScan(cmd *cobra.Command, args []string) error {
	log := newLogger()
	defer log.Sync()

	excludes := exclude.New()
	excludes.SetExcludeHidden(scanExcludeHide)
	for _, p := range scanExcludePaths {
		excludes.AddPath(p)
	}
	for _, pat := range scanExcludeFiles {
		if err := excludes.AddFilePattern(pat); err != nil {
			return fmt.Errorf("invalid --exclude-file pattern %q: %w", pat, err)
		}
	}
	for _, pat := range scanExcludeDirs {
		if err := excludes.AddDirPattern(pat); err != nil {
			return fmt.Errorf("invalid --exclude-dir pattern %q: %w", pat, err)
		}
	}

	var includes []scan.Include
	for i, root := range scanRoots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return fmt.Errorf("resolve root %q: %w", root, err)
		}
		includes = append(includes, scan.Include{
			Path:          pathutil.Normalize(abs),
			OneFilesystem: scanOneFS,
			ID:            uint16(i),
		})
	}

	db := store.New(log, workerpool.New(0))
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nCanceling...")
		cancel()
	}()

	start := time.Now()
	done := make(chan store.Event, 1)
	unsub := db.Events().Subscribe(func(ev store.Event) {
		if ev.Kind == store.EventScanFinished {
			select {
			case done <- ev:
			default:
			}
		}
	})
	defer unsub()

	fmt.Printf("Scanning %d root(s)...\n", len(includes))
	db.Scan(includes, excludes)

	spinnerIdx := 0
	ticker := time.NewTicker(120 * time.Millisecond)
	defer ticker.Stop()
	var finalEv store.Event
waitLoop:
	for {
		select {
		case finalEv = <-done:
			break waitLoop
		case <-ticker.C:
			if isTerminal() {
				fmt.Fprintf(os.Stderr, "\r\033[K%s Scanning... %s", spinnerFrames[spinnerIdx%len(spinnerFrames)], time.Since(start).Round(time.Millisecond))
				spinnerIdx++
			}
		case <-ctx.Done():
			break waitLoop
		}
	}
	if isTerminal() {
		fmt.Fprintf(os.Stderr, "\r\033[K")
	}

	if ctx.Err() != nil && finalEv.Kind != store.EventScanFinished {
		fmt.Fprintln(os.Stderr, "Scan canceled.")
		return nil
	}

	if finalEv.DBInfo != nil && finalEv.DBInfo.Err != nil {
		return fmt.Errorf("scan failed: %w", finalEv.DBInfo.Err)
	}

	fmt.Printf("Scan completed in %s\n", time.Since(start).Round(time.Millisecond))
	if finalEv.DBInfo != nil {
		fmt.Printf("  Files:   %s\n", humanize.Comma(int64(finalEv.DBInfo.NumFiles)))
		fmt.Printf("  Folders: %s\n", humanize.Comma(int64(finalEv.DBInfo.NumFolders)))
	}

	saveDone := make(chan store.Event, 1)
	unsubSave := db.Events().Subscribe(func(ev store.Event) {
		if ev.Kind == store.EventSaveFinished {
			select {
			case saveDone <- ev:
			default:
			}
		}
	})
	defer unsubSave()

	outAbs, err := filepath.Abs(scanOut)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}
	db.SaveToFile(outAbs)
	ev := <-saveDone
	if ev.Err != nil {
		return fmt.Errorf("save snapshot: %w", ev.Err)
	}
	fmt.Printf("Snapshot: %s\n", outAbs)

	if scanWatch {
		fmt.Println("Watching for changes (Ctrl+C to stop)...")
		if err := db.EnableWatching(); err != nil {
			return fmt.Errorf("enable watching: %w", err)
		}
		<-ctx.Done()
	}

	return nil
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
