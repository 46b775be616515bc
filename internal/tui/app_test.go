package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/1broseidon/viewhost/internal/ipc"
)

type fakeClient struct {
	dump    *ipc.DumpData
	err     error
	removed []string
	visible map[string]bool
	cancels []string
	created map[string]string
}

func newFakeClient(dump *ipc.DumpData) *fakeClient {
	return &fakeClient{dump: dump, visible: make(map[string]bool), created: make(map[string]string)}
}

func (f *fakeClient) Dump() (*ipc.DumpData, error) { return f.dump, f.err }

func (f *fakeClient) CreateView(name, bounds string) error {
	f.created[name] = bounds
	return nil
}

func (f *fakeClient) RemoveView(name string) error {
	f.removed = append(f.removed, name)
	return nil
}

func (f *fakeClient) SetVisible(name string, visible, _ bool) error {
	f.visible[name] = visible
	return nil
}

func (f *fakeClient) Cancel(name string) error {
	f.cancels = append(f.cancels, name)
	return nil
}

func sampleDump() *ipc.DumpData {
	return &ipc.DumpData{
		Status: ipc.StatusData{DaemonRunning: true, Compositor: "sim", QueueLength: 1},
		Windows: []ipc.WindowData{
			{ID: 1, Title: "home", Mode: "fullscreen", Bounds: "1920x1080+0+0", Visible: true, Source: "home"},
			{ID: 2, Title: "mail", Mode: "multi-window", Bounds: "600x400+0+0", Visible: true, Focused: true, Owner: "view:side", Source: "view"},
		},
		Views: []ipc.ViewData{
			{Name: "side", Bounds: "600x400+0+0", TaskID: 2, TaskVisible: true, Placed: true},
			{Name: "empty", Bounds: "300x300+0+0"},
		},
		Queue: []ipc.QueueEntry{{View: "side", Kind: "launch", State: "pending", LaunchToken: "tok"}},
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func loaded(t *testing.T, client *fakeClient) model {
	t.Helper()
	m := newModel(client, 0)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	next, _ = next.Update(dumpMsg{dump: client.dump})
	return next.(model)
}

func TestWindowRows(t *testing.T) {
	rows := windowRows(sampleDump())
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0][5] != "-" {
		t.Fatalf("unowned window owner = %q, want -", rows[0][5])
	}
	if rows[1][0] != "2*" {
		t.Fatalf("focused window id = %q, want 2*", rows[1][0])
	}
	if rows[1][5] != "view:side" {
		t.Fatalf("owner = %q, want view:side", rows[1][5])
	}
	if windowRows(nil) != nil {
		t.Fatalf("nil dump should give nil rows")
	}
}

func TestQueueRowsMarkExternal(t *testing.T) {
	dump := &ipc.DumpData{Queue: []ipc.QueueEntry{
		{View: "side", Kind: "launch", State: "pending"},
		{Kind: "to-front", State: "playing", External: true},
	}}
	rows := queueRows(dump)
	if rows[0][1] != "side" || rows[1][1] != "(external)" {
		t.Fatalf("rows = %v", rows)
	}
	if rows[1][0] != "1" {
		t.Fatalf("position = %q, want 1", rows[1][0])
	}
}

func TestViewItemDescription(t *testing.T) {
	tests := []struct {
		view ipc.ViewData
		want []string
	}{
		{ipc.ViewData{Name: "a", Bounds: "10x10+0+0"}, []string{"10x10+0+0", "empty"}},
		{ipc.ViewData{Name: "a", Bounds: "10x10+0+0", TaskID: 3}, []string{"window 3", "(unplaced)"}},
		{ipc.ViewData{Name: "a", LaunchToken: "tok"}, []string{"launching tok"}},
		{ipc.ViewData{Name: "a", NotFound: 2}, []string{"not found x2"}},
	}
	for _, tt := range tests {
		got := viewItem{view: tt.view}.Description()
		for _, want := range tt.want {
			if !strings.Contains(got, want) {
				t.Errorf("Description() = %q, want it to contain %q", got, want)
			}
		}
	}
}

func TestDumpPopulatesSubModels(t *testing.T) {
	m := loaded(t, newFakeClient(sampleDump()))

	if got := len(m.views.Items()); got != 2 {
		t.Fatalf("view items = %d, want 2", got)
	}
	if got := len(m.windows.Rows()); got != 2 {
		t.Fatalf("window rows = %d, want 2", got)
	}
	if got := len(m.queue.Rows()); got != 1 {
		t.Fatalf("queue rows = %d, want 1", got)
	}
	if view := m.View(); !strings.Contains(view, "side") {
		t.Fatalf("view does not list the side view:\n%s", view)
	}
}

func TestDumpErrorKeepsLastState(t *testing.T) {
	m := loaded(t, newFakeClient(sampleDump()))
	next, _ := m.Update(dumpMsg{err: errors.New("connection refused")})
	m = next.(model)
	if m.lastErr == nil {
		t.Fatalf("expected error to be recorded")
	}
	if m.dump == nil || len(m.dump.Views) != 2 {
		t.Fatalf("previous dump should be kept")
	}
	if !strings.Contains(m.View(), "daemon not reachable") {
		t.Fatalf("status bar does not report the error")
	}
}

func TestScheduledDumpRearmsPoll(t *testing.T) {
	m := newModel(newFakeClient(sampleDump()), 0)
	if _, cmd := m.Update(dumpMsg{dump: sampleDump(), scheduled: true}); cmd == nil {
		t.Fatalf("scheduled dump should schedule the next tick")
	}
	if _, cmd := m.Update(dumpMsg{dump: sampleDump()}); cmd != nil {
		// SetItems may return a command for the list; the poll must not be re-armed.
		if _, ok := cmd().(tickMsg); ok {
			t.Fatalf("unscheduled dump re-armed the poll")
		}
	}
}

func TestTabSwitching(t *testing.T) {
	m := loaded(t, newFakeClient(sampleDump()))

	next, _ := m.Update(key("tab"))
	if got := next.(model).activeTab; got != TabWindows {
		t.Fatalf("after tab = %v, want Windows", got)
	}
	next, _ = next.Update(key("4"))
	if got := next.(model).activeTab; got != TabConversions {
		t.Fatalf("after 4 = %v, want Conversions", got)
	}
	next, _ = next.Update(key("tab"))
	if got := next.(model).activeTab; got != TabViews {
		t.Fatalf("tab should wrap to Views, got %v", got)
	}
}

func TestViewActions(t *testing.T) {
	tests := []struct {
		key   string
		check func(t *testing.T, c *fakeClient)
	}{
		{"x", func(t *testing.T, c *fakeClient) {
			if len(c.removed) != 1 || c.removed[0] != "side" {
				t.Fatalf("removed = %v, want [side]", c.removed)
			}
		}},
		{"v", func(t *testing.T, c *fakeClient) {
			if visible, ok := c.visible["side"]; !ok || visible {
				t.Fatalf("visible = %v, want side hidden", c.visible)
			}
		}},
		{"c", func(t *testing.T, c *fakeClient) {
			if len(c.cancels) != 1 || c.cancels[0] != "side" {
				t.Fatalf("cancels = %v, want [side]", c.cancels)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			client := newFakeClient(sampleDump())
			m := loaded(t, client)
			_, cmd := m.Update(key(tt.key))
			if cmd == nil {
				t.Fatalf("expected an action command")
			}
			msg, ok := cmd().(actionMsg)
			if !ok {
				t.Fatalf("command produced %T, want actionMsg", msg)
			}
			if msg.err != nil {
				t.Fatalf("action error = %v", msg.err)
			}
			tt.check(t, client)
		})
	}
}

func TestActionMsgRefreshes(t *testing.T) {
	m := loaded(t, newFakeClient(sampleDump()))
	next, cmd := m.Update(actionMsg{what: "removed side"})
	if cmd == nil {
		t.Fatalf("action result should trigger a refresh")
	}
	if d, ok := cmd().(dumpMsg); !ok || d.scheduled {
		t.Fatalf("refresh = %#v, want unscheduled dumpMsg", d)
	}
	if !strings.Contains(next.(model).notice, "removed side") {
		t.Fatalf("notice = %q", next.(model).notice)
	}
}

func TestCreateFormEscCancels(t *testing.T) {
	client := newFakeClient(sampleDump())
	m := loaded(t, client)

	next, _ := m.Update(key("n"))
	m = next.(model)
	if m.create == nil {
		t.Fatalf("n should open the create form")
	}
	next, _ = m.Update(key("esc"))
	m = next.(model)
	if m.create != nil {
		t.Fatalf("esc should close the create form")
	}
	if len(client.created) != 0 {
		t.Fatalf("cancelled form created a view")
	}
}

func TestValidateBounds(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"", false},
		{"800x600+0+0", false},
		{"0x0+0+0", true},
		{"bogus", true},
	}
	for _, tt := range tests {
		if err := validateBounds(tt.in); (err != nil) != tt.wantErr {
			t.Errorf("validateBounds(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
	}
}
