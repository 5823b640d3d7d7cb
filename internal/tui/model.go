// Package tui implements an interactive bubbletea browser over a
// store.Database view: a query box, a sortable/reversible result list, and
// row selection, driven by the async Database/Bus machinery of spec.md
// §4.12 rather than by blocking calls.
package tui

import (
	"time"

	"github.com/caldwell-labs/fsindex/internal/entry"
	"github.com/caldwell-labs/fsindex/internal/index"
	"github.com/caldwell-labs/fsindex/internal/searchengine"
	"github.com/caldwell-labs/fsindex/internal/store"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const viewID = "tui"

// Model holds the TUI state.
type Model struct {
	db     *store.Database
	events chan store.Event

	input     textinput.Model
	editing   bool
	queryText string

	spin      spinner.Model
	searching bool

	sortProp index.Property
	sortDir  searchengine.Direction

	result *searchengine.Result
	cursor int

	width, height int
	err           error
}

// NewModel creates a Model bound to db, registering the view it will drive.
func NewModel(db *store.Database) *Model {
	db.RegisterView(viewID)

	ti := textinput.New()
	ti.Placeholder = `ext:jpg size:>10mb date-modified:"last two weeks"`
	ti.CharLimit = 512
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &Model{
		db:       db,
		events:   make(chan store.Event, 64),
		input:    ti,
		spin:     sp,
		sortProp: index.PropName,
		sortDir:  searchengine.Ascending,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	unsub := m.db.Events().Subscribe(func(ev store.Event) {
		select {
		case m.events <- ev:
		default:
		}
	})
	_ = unsub // the model outlives the program; never unsubscribed mid-run

	m.db.Search(viewID, m.queryText, m.sortProp, m.sortDir)
	return tea.Batch(waitForEvent(m.events), m.spin.Tick)
}

type eventMsg store.Event

// waitForEvent blocks for the next bus event and delivers it as a tea.Msg;
// re-issued after every Update so the model never misses an event between
// ticks (mirrors the teacher's own load-then-render message pump, adapted
// from a one-shot SQL load to a standing subscription).
func waitForEvent(ch chan store.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}

func (m *Model) numRows() int {
	if m.result == nil {
		return 0
	}
	return m.result.Folders.Len() + m.result.Files.Len()
}

func (m *Model) rowAt(i int) *entry.Entry {
	if m.result == nil || i < 0 {
		return nil
	}
	if i < m.result.Folders.Len() {
		return m.result.Folders.At(i)
	}
	i -= m.result.Folders.Len()
	if i < m.result.Files.Len() {
		return m.result.Files.At(i)
	}
	return nil
}

func (m *Model) helpLine() string {
	if m.editing {
		return "type to edit query | Enter: apply | Esc: clear"
	}
	return "↑/↓ move | /: query | n/s/m/e/t/y/c: sort | r: reverse | x: select | q: quit"
}

func sortLabel(p index.Property) string {
	switch p {
	case index.PropName:
		return "name"
	case index.PropPath:
		return "path"
	case index.PropSize:
		return "size"
	case index.PropMtime:
		return "modified"
	case index.PropExtension:
		return "extension"
	case index.PropFileType:
		return "type"
	case index.PropDepth:
		return "depth"
	case index.PropChildCount:
		return "children"
	}
	return "?"
}

func formatMtime(unix int64) string {
	if unix == 0 {
		return ""
	}
	return time.Unix(unix, 0).Format("2006-01-02 15:04")
}
