package conversion

import (
	"log/slog"
	"math"
	"time"

	"github.com/1broseidon/viewhost/internal/executor"
	"github.com/1broseidon/viewhost/internal/platform"
	"github.com/1broseidon/viewhost/internal/taskview"
)

// Inflater builds a view's content. done may be called synchronously.
type Inflater interface {
	Inflate(view *taskview.Controller, done func())
}

// ImmediateInflater has no content to build.
type ImmediateInflater struct{}

func (ImmediateInflater) Inflate(_ *taskview.Controller, done func()) { done() }

// ManualInflater never completes on its own. Call Coordinator.Inflated
// when the content is ready.
type ManualInflater struct{}

func (ManualInflater) Inflate(*taskview.Controller, func()) {}

// Animator plays the terminal visual effect of a conversion. done must be
// called exactly once.
type Animator interface {
	AnimateLaunch(leash *platform.Leash, bounds platform.Rect, expand bool, done func())
	AnimateConvert(leash *platform.Leash, from, to platform.Rect, done func())
}

// ImmediateAnimator finishes without animating.
type ImmediateAnimator struct{}

func (ImmediateAnimator) AnimateLaunch(_ *platform.Leash, _ platform.Rect, _ bool, done func()) {
	done()
}

func (ImmediateAnimator) AnimateConvert(_ *platform.Leash, _, _ platform.Rect, done func()) {
	done()
}

// TimedAnimator steps a fade (and, when expanding, a crop grow) on the
// executor clock.
type TimedAnimator struct {
	Exec     executor.Executor
	Applier  platform.SurfaceApplier
	Duration time.Duration
	Frames   int
	// Logger receives frames that failed to apply. Nil discards them.
	Logger *slog.Logger
}

func (a *TimedAnimator) frames() int {
	if a.Frames <= 0 {
		return 12
	}
	return a.Frames
}

// AnimateLaunch fades the task in. With expand the crop grows from the
// center of bounds to its full size.
func (a *TimedAnimator) AnimateLaunch(leash *platform.Leash, bounds platform.Rect, expand bool, done func()) {
	full := bounds.Size()
	a.run(leash, func(t *platform.Transaction, p float64) {
		t.SetAlpha(leash, float32(p))
		if expand {
			t.SetCrop(leash, scaleRect(full, 0.5+0.5*p))
		}
	}, func(t *platform.Transaction) {
		t.SetAlpha(leash, 1).SetCrop(leash, full)
	}, done)
}

// AnimateConvert resizes the crop from the window's old size to its new one.
func (a *TimedAnimator) AnimateConvert(leash *platform.Leash, from, to platform.Rect, done func()) {
	a.run(leash, func(t *platform.Transaction, p float64) {
		t.SetCrop(leash, platform.Rect{
			Width:  lerp(from.Width, to.Width, p),
			Height: lerp(from.Height, to.Height, p),
		})
	}, func(t *platform.Transaction) {
		t.SetCrop(leash, to.Size())
	}, done)
}

func (a *TimedAnimator) run(leash *platform.Leash, step func(*platform.Transaction, float64), last func(*platform.Transaction), done func()) {
	if a.Exec == nil || a.Applier == nil || a.Duration <= 0 || !leash.Valid() {
		done()
		return
	}
	frames := a.frames()
	interval := a.Duration / time.Duration(frames)

	var frame func(i int)
	frame = func(i int) {
		t := platform.NewTransaction()
		if i >= frames {
			last(t)
			a.apply(t, leash, i)
			done()
			return
		}
		step(t, smoothstep(float64(i)/float64(frames)))
		a.apply(t, leash, i)
		a.Exec.PostDelayed(func() { frame(i + 1) }, interval)
	}
	frame(0)
}

func (a *TimedAnimator) apply(t *platform.Transaction, leash *platform.Leash, frame int) {
	if err := t.Apply(a.Applier); err != nil && a.Logger != nil {
		a.Logger.Warn("failed to apply animation frame",
			"leash", leash.String(),
			"frame", frame,
			"error", err)
	}
}

func smoothstep(t float64) float64 {
	return t * t * (3.0 - 2.0*t)
}

func lerp(a, b int, t float64) int {
	return int(math.Round(float64(a) + float64(b-a)*t))
}

func scaleRect(r platform.Rect, f float64) platform.Rect {
	w := int(math.Round(float64(r.Width) * f))
	h := int(math.Round(float64(r.Height) * f))
	return platform.Rect{X: (r.Width - w) / 2, Y: (r.Height - h) / 2, Width: w, Height: h}
}
