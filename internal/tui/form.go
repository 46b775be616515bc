package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/1broseidon/viewhost/internal/platform"
)

// createForm collects the name and bounds of a new view.
type createForm struct {
	form *huh.Form

	// Form-bound values
	fName   string
	fBounds string
}

func validateViewName(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

func validateBounds(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	r, err := platform.ParseRect(s)
	if err != nil {
		return err
	}
	if r.Empty() {
		return fmt.Errorf("bounds must have a size")
	}
	return nil
}

func newCreateForm(width int) *createForm {
	f := &createForm{}
	w := width - 4
	if w < 40 {
		w = 40
	}
	f.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("name").
				Title("View name").
				Validate(validateViewName).
				Value(&f.fName),

			huh.NewInput().
				Key("bounds").
				Title("Bounds").
				Description("WxH+X+Y; empty fills the display").
				Validate(validateBounds).
				Value(&f.fBounds),
		),
	).WithWidth(w).WithShowHelp(true).WithShowErrors(true)
	return f
}

// update returns done once the form completed or was aborted.
func (f *createForm) update(msg tea.Msg) (done bool, cmd tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok && km.String() == "esc" {
		return true, nil
	}
	form, cmd := f.form.Update(msg)
	if hf, ok := form.(*huh.Form); ok {
		f.form = hf
	}
	switch f.form.State {
	case huh.StateCompleted, huh.StateAborted:
		return true, cmd
	}
	return false, cmd
}

func (f *createForm) completed() bool {
	return f.form.State == huh.StateCompleted
}

func (f *createForm) values() (name, bounds string) {
	return strings.TrimSpace(f.fName), strings.TrimSpace(f.fBounds)
}
