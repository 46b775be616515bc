package tui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/viewhost/internal/ipc"
)

// viewItem is a list item representing one hosted view.
type viewItem struct {
	view ipc.ViewData
}

func (i viewItem) Title() string {
	var dot string
	switch {
	case i.view.TaskID == 0:
		dot = dimStyle.Render("○")
	case i.view.TaskVisible:
		dot = okStyle.Render("●")
	default:
		dot = warnStyle.Render("●")
	}
	return dot + " " + i.view.Name
}

func (i viewItem) Description() string {
	v := i.view
	desc := v.Bounds
	if v.TaskID != 0 {
		desc += fmt.Sprintf("  window %d", v.TaskID)
		if !v.Placed {
			desc += " (unplaced)"
		}
	} else {
		desc += "  empty"
	}
	if v.LaunchToken != "" {
		desc += "  launching " + v.LaunchToken
	}
	if v.NotFound > 0 {
		desc += "  " + errorStyle.Render(fmt.Sprintf("not found x%d", v.NotFound))
	}
	return desc
}

func (i viewItem) FilterValue() string { return i.view.Name }

func viewItems(dump *ipc.DumpData) []list.Item {
	if dump == nil {
		return nil
	}
	items := make([]list.Item, 0, len(dump.Views))
	for _, v := range dump.Views {
		items = append(items, viewItem{view: v})
	}
	return items
}

func newViewList() list.Model {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.Color("15")).
		BorderForeground(lipgloss.Color("62"))
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(lipgloss.Color("250")).
		BorderForeground(lipgloss.Color("62"))

	l := list.New(nil, delegate, 0, 0)
	l.Title = "Views"
	l.Styles.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("62")).
		Padding(0, 1)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	return l
}

var (
	windowColumns = []table.Column{
		{Title: "ID", Width: 10},
		{Title: "Title", Width: 24},
		{Title: "Mode", Width: 12},
		{Title: "Bounds", Width: 18},
		{Title: "Vis", Width: 4},
		{Title: "Owner", Width: 18},
		{Title: "Source", Width: 8},
	}
	queueColumns = []table.Column{
		{Title: "#", Width: 3},
		{Title: "View", Width: 16},
		{Title: "Kind", Width: 12},
		{Title: "State", Width: 10},
		{Title: "Claim", Width: 38},
		{Title: "Launch", Width: 38},
	}
	conversionColumns = []table.Column{
		{Title: "View", Width: 16},
		{Title: "Kind", Width: 10},
		{Title: "Phase", Width: 18},
		{Title: "Gates", Width: 24},
		{Title: "Claim", Width: 38},
	}
)

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func windowRows(dump *ipc.DumpData) []table.Row {
	if dump == nil {
		return nil
	}
	rows := make([]table.Row, 0, len(dump.Windows))
	for _, w := range dump.Windows {
		id := strconv.FormatUint(uint64(w.ID), 10)
		if w.Focused {
			id += "*"
		}
		owner := w.Owner
		if owner == "" {
			owner = "-"
		}
		rows = append(rows, table.Row{id, w.Title, w.Mode, w.Bounds, yesNo(w.Visible), owner, w.Source})
	}
	return rows
}

func queueRows(dump *ipc.DumpData) []table.Row {
	if dump == nil {
		return nil
	}
	rows := make([]table.Row, 0, len(dump.Queue))
	for i, q := range dump.Queue {
		view := q.View
		if q.External {
			view = "(external)"
		}
		rows = append(rows, table.Row{strconv.Itoa(i), view, q.Kind, q.State, q.Claim, q.LaunchToken})
	}
	return rows
}

func conversionRows(dump *ipc.DumpData) []table.Row {
	if dump == nil {
		return nil
	}
	rows := make([]table.Row, 0, len(dump.Conversions))
	for _, c := range dump.Conversions {
		rows = append(rows, table.Row{c.View, c.Kind, c.Phase, c.Gates, c.Claim})
	}
	return rows
}

func newTable(columns []table.Column) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("62"))
	t.SetStyles(s)
	return t
}
