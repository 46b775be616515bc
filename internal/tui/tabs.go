package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/viewhost/internal/ipc"
)

// Tab identifies a watch screen tab.
type Tab int

const (
	TabViews Tab = iota
	TabWindows
	TabQueue
	TabConversions
	tabCount // sentinel for iteration
)

func (t Tab) String() string {
	switch t {
	case TabViews:
		return "Views"
	case TabWindows:
		return "Windows"
	case TabQueue:
		return "Queue"
	case TabConversions:
		return "Conversions"
	default:
		return "?"
	}
}

var (
	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("250")).
				Background(lipgloss.Color("236")).
				Padding(0, 2)

	tabBarStyle = lipgloss.NewStyle().
			MarginBottom(1)

	tabGap = lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		SetString(" ")

	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// renderTabBar renders the tab bar with the given active tab and width.
// Each label carries a count taken from the latest dump.
func renderTabBar(active Tab, dump *ipc.DumpData, width int) string {
	var tabs []string
	for i := Tab(0); i < tabCount; i++ {
		label := fmt.Sprintf("%d:%s", int(i)+1, i.String())
		if n, ok := tabItems(i, dump); ok {
			label += fmt.Sprintf(" (%d)", n)
		}
		if i == active {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(label))
		}
	}

	row := lipgloss.JoinHorizontal(lipgloss.Top, intersperse(tabs, tabGap.Render())...)
	return tabBarStyle.Width(width).Render(row)
}

func tabItems(tab Tab, dump *ipc.DumpData) (int, bool) {
	if dump == nil {
		return 0, false
	}
	switch tab {
	case TabViews:
		return len(dump.Views), true
	case TabWindows:
		return len(dump.Windows), true
	case TabQueue:
		return len(dump.Queue), true
	case TabConversions:
		return len(dump.Conversions), true
	}
	return 0, false
}

// intersperse inserts sep between each element of items.
func intersperse(items []string, sep string) []string {
	if len(items) <= 1 {
		return items
	}
	result := make([]string, 0, len(items)*2-1)
	for i, item := range items {
		if i > 0 {
			result = append(result, sep)
		}
		result = append(result, item)
	}
	return result
}

// renderStatusBar renders the daemon connection status bar.
func renderStatusBar(dump *ipc.DumpData, err error, width int) string {
	var status string
	switch {
	case err != nil:
		status = errorStyle.Render("●") + " daemon not reachable: " + err.Error()
	case dump == nil:
		status = dimStyle.Render("●") + " connecting..."
	default:
		s := dump.Status
		parts := []string{
			okStyle.Render("●") + " " + s.Compositor,
			"up " + (time.Duration(s.UptimeSeconds) * time.Second).String(),
		}
		if dump.Focused != 0 {
			parts = append(parts, fmt.Sprintf("focused:%d", dump.Focused))
		}
		if s.QueueLength > 0 {
			parts = append(parts, warnStyle.Render(fmt.Sprintf("%d queued", s.QueueLength)))
		}
		status = strings.Join(parts, "  ")
	}

	style := lipgloss.NewStyle().
		Width(width).
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("250")).
		Padding(0, 1)
	return style.Render(status)
}

// renderHelpBar renders the bottom help/keybinding bar.
func renderHelpBar(active Tab, notice string, width int) string {
	help := "tab/shift-tab: switch tabs  1-4: jump to tab  n: new view  r: refresh  q/ctrl-c: quit"
	if active == TabViews {
		help = "n: new view  x: remove  v: toggle visible  c: cancel conversion  tab: switch  q: quit"
	}
	if notice != "" {
		help = notice + "  " + dimStyle.Render("|") + "  " + help
	}
	style := lipgloss.NewStyle().
		Width(width).
		Foreground(lipgloss.Color("241")).
		Padding(0, 1)
	return style.Render(help)
}

// renderPlaceholder renders centred filler for an empty tab.
func renderPlaceholder(msg string, width, height int) string {
	style := lipgloss.NewStyle().
		Width(width).
		Height(height).
		Foreground(lipgloss.Color("241")).
		Align(lipgloss.Center, lipgloss.Center)
	return style.Render(msg)
}
