package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/viewhost/internal/ipc"
)

// Client is the part of the IPC client the watch screen uses.
type Client interface {
	Dump() (*ipc.DumpData, error)
	CreateView(name, bounds string) error
	RemoveView(name string) error
	SetVisible(name string, visible, reorder bool) error
	Cancel(name string) error
}

var _ Client = (*ipc.Client)(nil)

// dumpMsg carries a dump. Scheduled dumps re-arm the poll timer.
type dumpMsg struct {
	dump      *ipc.DumpData
	err       error
	scheduled bool
}

type tickMsg time.Time

// actionMsg reports the outcome of a view operation.
type actionMsg struct {
	what string
	err  error
}

// model is the root bubbletea model for the watch screen.
type model struct {
	client   Client
	interval time.Duration

	activeTab Tab

	// Latest daemon state
	dump    *ipc.DumpData
	lastErr error
	notice  string

	// Sub-models
	views       list.Model
	windows     table.Model
	queue       table.Model
	conversions table.Model

	// Create-view overlay
	create *createForm

	// Terminal dimensions
	width  int
	height int
}

func newModel(client Client, interval time.Duration) model {
	if interval <= 0 {
		interval = time.Second
	}
	return model{
		client:      client,
		interval:    interval,
		activeTab:   TabViews,
		views:       newViewList(),
		windows:     newTable(windowColumns),
		queue:       newTable(queueColumns),
		conversions: newTable(conversionColumns),
	}
}

func fetchDump(c Client, scheduled bool) tea.Cmd {
	return func() tea.Msg {
		dump, err := c.Dump()
		return dumpMsg{dump: dump, err: err, scheduled: scheduled}
	}
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func runAction(what string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{what: what, err: fn()}
	}
}

// contentHeight returns the height available for tab content.
func (m model) contentHeight() int {
	// status bar (1) + tab bar (2 with margin) + help bar (1)
	h := m.height - 4
	if h < 1 {
		h = 1
	}
	return h
}

func (m *model) resize() {
	h := m.contentHeight()
	m.views.SetSize(m.width, h)
	for _, t := range []*table.Model{&m.windows, &m.queue, &m.conversions} {
		t.SetWidth(m.width)
		t.SetHeight(h)
	}
}

func (m *model) applyDump(dump *ipc.DumpData) tea.Cmd {
	m.dump = dump
	m.windows.SetRows(windowRows(dump))
	m.queue.SetRows(queueRows(dump))
	m.conversions.SetRows(conversionRows(dump))
	return m.views.SetItems(viewItems(dump))
}

func (m model) selectedView() (ipc.ViewData, bool) {
	item, ok := m.views.SelectedItem().(viewItem)
	if !ok {
		return ipc.ViewData{}, false
	}
	return item.view, true
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return fetchDump(m.client, true)
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dumpMsg:
		m.lastErr = msg.err
		var cmd tea.Cmd
		if msg.err == nil {
			cmd = m.applyDump(msg.dump)
		}
		if msg.scheduled {
			cmd = tea.Batch(cmd, tick(m.interval))
		}
		return m, cmd

	case tickMsg:
		return m, fetchDump(m.client, true)

	case actionMsg:
		if msg.err != nil {
			m.notice = errorStyle.Render(fmt.Sprintf("%s failed: %v", msg.what, msg.err))
		} else {
			m.notice = okStyle.Render(msg.what)
		}
		return m, fetchDump(m.client, false)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil
	}

	// The create form captures all input while shown.
	if m.create != nil {
		if km, ok := msg.(tea.KeyMsg); ok && km.String() == "ctrl+c" {
			return m, tea.Quit
		}
		done, cmd := m.create.update(msg)
		if !done {
			return m, cmd
		}
		form := m.create
		m.create = nil
		if !form.completed() {
			return m, nil
		}
		name, bounds := form.values()
		return m, runAction("created "+name, func() error { return m.client.CreateView(name, bounds) })
	}

	if km, ok := msg.(tea.KeyMsg); ok {
		switch km.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			m.activeTab = (m.activeTab + 1) % tabCount
			return m, nil
		case "shift+tab":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
			return m, nil
		case "1", "2", "3", "4":
			m.activeTab = Tab(km.String()[0] - '1')
			return m, nil
		case "r":
			return m, fetchDump(m.client, false)
		case "n":
			m.create = newCreateForm(m.width)
			return m, m.create.form.Init()
		}

		if m.activeTab == TabViews {
			if cmd, handled := m.viewKey(km.String()); handled {
				return m, cmd
			}
		}
	}

	var cmd tea.Cmd
	switch m.activeTab {
	case TabViews:
		m.views, cmd = m.views.Update(msg)
	case TabWindows:
		m.windows, cmd = m.windows.Update(msg)
	case TabQueue:
		m.queue, cmd = m.queue.Update(msg)
	case TabConversions:
		m.conversions, cmd = m.conversions.Update(msg)
	}
	return m, cmd
}

// viewKey handles the per-view actions of the views tab.
func (m model) viewKey(key string) (tea.Cmd, bool) {
	switch key {
	case "x", "v", "c":
	default:
		return nil, false
	}
	view, ok := m.selectedView()
	if !ok {
		return nil, true
	}
	name := view.Name
	switch key {
	case "x":
		return runAction("removed "+name, func() error { return m.client.RemoveView(name) }), true
	case "v":
		visible := !view.TaskVisible
		what := "hid " + name
		if visible {
			what = "showed " + name
		}
		return runAction(what, func() error { return m.client.SetVisible(name, visible, true) }), true
	default:
		return runAction("cancelled "+name, func() error { return m.client.Cancel(name) }), true
	}
}

// View implements tea.Model.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	statusBar := renderStatusBar(m.dump, m.lastErr, m.width)
	tabBar := renderTabBar(m.activeTab, m.dump, m.width)
	helpBar := renderHelpBar(m.activeTab, m.notice, m.width)

	usedHeight := lipgloss.Height(statusBar) + lipgloss.Height(tabBar) + lipgloss.Height(helpBar)
	contentHeight := m.height - usedHeight
	if contentHeight < 1 {
		contentHeight = 1
	}

	var content string
	switch {
	case m.create != nil:
		content = m.create.form.View()
	case m.dump == nil:
		content = renderPlaceholder("waiting for daemon", m.width, contentHeight)
	default:
		content = m.tabContent(contentHeight)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		statusBar,
		tabBar,
		content,
		helpBar,
	)
}

func (m model) tabContent(height int) string {
	switch m.activeTab {
	case TabViews:
		if len(m.dump.Views) == 0 {
			return renderPlaceholder("no views; press n to create one", m.width, height)
		}
		return m.views.View()
	case TabWindows:
		return m.windows.View()
	case TabQueue:
		if len(m.dump.Queue) == 0 {
			return renderPlaceholder("transition queue is empty", m.width, height)
		}
		return m.queue.View()
	case TabConversions:
		if len(m.dump.Conversions) == 0 {
			return renderPlaceholder("no conversions in flight", m.width, height)
		}
		return m.conversions.View()
	}
	return ""
}
