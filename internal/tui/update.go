package tui

import (
	"github.com/caldwell-labs/fsindex/internal/index"
	"github.com/caldwell-labs/fsindex/internal/searchengine"
	"github.com/caldwell-labs/fsindex/internal/store"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case eventMsg:
		m.handleEvent(store.Event(msg))
		return m, waitForEvent(m.events)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleEvent(ev store.Event) {
	if ev.ViewID != "" && ev.ViewID != viewID {
		return
	}
	switch ev.Kind {
	case store.EventSearchStarted, store.EventSortStarted:
		m.searching = true
	case store.EventSearchFinished, store.EventSortFinished:
		m.searching = false
		if ev.Err != nil {
			m.err = ev.Err
			return
		}
		m.err = nil
		if v := m.db.View(viewID); v != nil {
			m.result = v.Result()
		}
		if m.cursor >= m.numRows() {
			m.cursor = m.numRows() - 1
		}
		if m.cursor < 0 {
			m.cursor = 0
		}
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.editing {
		switch msg.String() {
		case "enter":
			m.editing = false
			m.input.Blur()
			return m, nil
		case "esc":
			m.editing = false
			m.input.Blur()
			m.input.SetValue("")
			m.queryText = ""
			m.db.Search(viewID, m.queryText, m.sortProp, m.sortDir)
			return m, nil
		case "ctrl+c":
			return m, tea.Quit
		}

		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		if v := m.input.Value(); v != m.queryText {
			m.queryText = v
			m.db.Search(viewID, m.queryText, m.sortProp, m.sortDir)
		}
		return m, cmd
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "down", "j":
		if m.cursor < m.numRows()-1 {
			m.cursor++
		}
		return m, nil

	case "home", "g":
		m.cursor = 0
		return m, nil

	case "end", "G":
		m.cursor = m.numRows() - 1
		if m.cursor < 0 {
			m.cursor = 0
		}
		return m, nil

	case "pgup":
		m.cursor -= 10
		if m.cursor < 0 {
			m.cursor = 0
		}
		return m, nil

	case "pgdown":
		m.cursor += 10
		if m.cursor >= m.numRows() {
			m.cursor = m.numRows() - 1
		}
		if m.cursor < 0 {
			m.cursor = 0
		}
		return m, nil

	case "/":
		m.editing = true
		return m, m.input.Focus()

	case "x", " ":
		m.db.ModifySelection(viewID, store.SelectionToggle, m.cursor, m.cursor)
		return m, nil

	case "r":
		if m.sortDir == searchengine.Ascending {
			m.sortDir = searchengine.Descending
		} else {
			m.sortDir = searchengine.Ascending
		}
		m.db.Sort(viewID, m.sortProp, m.sortDir)
		return m, nil

	case "n":
		return m.resort(index.PropName)
	case "s":
		return m.resort(index.PropSize)
	case "m":
		return m.resort(index.PropMtime)
	case "e":
		return m.resort(index.PropExtension)
	case "t":
		return m.resort(index.PropFileType)
	case "y":
		return m.resort(index.PropDepth)
	case "c":
		return m.resort(index.PropChildCount)
	}

	return m, nil
}

func (m *Model) resort(prop index.Property) (tea.Model, tea.Cmd) {
	m.sortProp = prop
	m.db.Sort(viewID, m.sortProp, m.sortDir)
	return m, nil
}
