package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/caldwell-labs/fsindex/internal/entry"
	"github.com/caldwell-labs/fsindex/internal/index"
	"github.com/caldwell-labs/fsindex/internal/match"
	"github.com/caldwell-labs/fsindex/internal/query"
	"github.com/caldwell-labs/fsindex/internal/searchengine"
	"github.com/caldwell-labs/fsindex/internal/snapshot"
	"github.com/caldwell-labs/fsindex/internal/workerpool"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query [flags] <query text>",
	Short: "Run one query against a snapshot, non-interactively",
	Long:  `Loads a snapshot file and prints every entry matching the given query text, for scripting.`,
	Args:  cobra.ArbitraryArgs,
	RunE:  runQuery,
}

var (
	querySnapshot     string
	querySort         string
	queryDesc         bool
	queryLimit        int
	queryCase         bool
	querySearchInPath bool
)

var sortProperties = map[string]index.Property{
	"name":      index.PropName,
	"path":      index.PropPath,
	"size":      index.PropSize,
	"mtime":     index.PropMtime,
	"ext":       index.PropExtension,
	"filetype":  index.PropFileType,
	"depth":     index.PropDepth,
	"children":  index.PropChildCount,
}

func init() {
	queryCmd.Flags().StringVarP(&querySnapshot, "db", "d", "./index.fsdb", "Snapshot file to query")
	queryCmd.Flags().StringVarP(&querySort, "sort", "s", "name", "Sort field: name|path|size|mtime|ext|filetype|depth|children")
	queryCmd.Flags().BoolVar(&queryDesc, "desc", false, "Sort descending")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 100, "Maximum rows to print (0 = unlimited)")
	queryCmd.Flags().BoolVar(&queryCase, "match-case", false, "Force case-sensitive matching")
	queryCmd.Flags().BoolVar(&querySearchInPath, "search-in-path", false, "Force matching against the full path instead of just the name")
}

func runQuery(cmd *cobra.Command, args []string) error {
	log := newLogger()
	defer log.Sync()

	prop, ok := sortProperties[querySort]
	if !ok {
		return fmt.Errorf("unknown --sort field %q", querySort)
	}
	dir := searchengine.Ascending
	if queryDesc {
		dir = searchengine.Descending
	}

	st := index.New(0, log)
	pool := entry.NewPool()
	if _, err := snapshot.Load(st, pool, querySnapshot, log); err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	text := ""
	if len(args) > 0 {
		text = args[0]
		for _, a := range args[1:] {
			text += " " + a
		}
	}
	parsed := query.Parse(text)
	for _, d := range parsed.Diagnostics {
		fmt.Fprintf(os.Stderr, "warning: field %q: %v\n", d.Field, d.Err)
	}

	res, err := searchengine.Search(context.Background(), st, searchengine.Request{
		Parsed:   parsed,
		Property: prop,
		Direction: dir,
		Defaults: match.Defaults{MatchCase: queryCase, SearchInPath: querySearchInPath},
		Now:      time.Now(),
	}, workerpool.New(0))
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "TYPE\tSIZE\tMODIFIED\tPATH\n")
	printed := 0
	printRow := func(e *entry.Entry) bool {
		if queryLimit > 0 && printed >= queryLimit {
			return false
		}
		kind := "file"
		if e.Kind == entry.KindFolder {
			kind = "dir"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", kind, humanize.Bytes(e.Size), time.Unix(e.Mtime, 0).Format("2006-01-02 15:04"), entry.Path(e))
		printed++
		return true
	}
	for i := 0; i < res.Folders.Len(); i++ {
		if !printRow(res.Folders.At(i)) {
			break
		}
	}
	for i := 0; i < res.Files.Len(); i++ {
		if !printRow(res.Files.At(i)) {
			break
		}
	}
	w.Flush()

	fmt.Printf("\n%s matched (%s folders, %s files)\n",
		humanize.Comma(int64(res.Folders.Len()+res.Files.Len())),
		humanize.Comma(int64(res.Folders.Len())),
		humanize.Comma(int64(res.Files.Len())))
	return nil
}
