package registry

import (
	"errors"
	"fmt"
	"testing"

	"github.com/1broseidon/viewhost/internal/platform"
)

type event struct {
	kind string
	id   platform.WindowID
}

type recorder struct {
	name   string
	events []event
	leases map[platform.WindowID]*platform.Leash
}

func newRecorder(name string) *recorder {
	return &recorder{name: name, leases: make(map[platform.WindowID]*platform.Leash)}
}

func (r *recorder) OnAppeared(info *platform.WindowInfo, leash *platform.Leash) {
	r.events = append(r.events, event{"appeared", info.ID})
	r.leases[info.ID] = leash
}

func (r *recorder) OnInfoChanged(info *platform.WindowInfo) {
	r.events = append(r.events, event{"changed", info.ID})
}

func (r *recorder) OnVanished(info *platform.WindowInfo) {
	r.events = append(r.events, event{"vanished", info.ID})
}

func (r *recorder) OnRootBackPressed(info *platform.WindowInfo) {
	r.events = append(r.events, event{"back", info.ID})
}

func (r *recorder) SupportsSideUI() bool { return false }

func (r *recorder) count(kind string, id platform.WindowID) int {
	n := 0
	for _, e := range r.events {
		if e.kind == kind && e.id == id {
			n++
		}
	}
	return n
}

func (r *recorder) String() string { return fmt.Sprintf("%s%v", r.name, r.events) }

func leashFor(id platform.WindowID) *platform.Leash {
	return &platform.Leash{ID: uint64(id) + 1000, Window: id}
}

func TestRegisterBeforeAppearThenDuplicate(t *testing.T) {
	reg := New(nil, nil)
	a, b := newRecorder("a"), newRecorder("b")

	if err := reg.RegisterForWindow(a, 10); err != nil {
		t.Fatalf("register a: %v", err)
	}
	reg.OnWindowAppeared(&platform.WindowInfo{ID: 10, Visible: true}, leashFor(10))

	if got := a.count("appeared", 10); got != 1 {
		t.Fatalf("a appeared count = %d, want 1 (%s)", got, a)
	}
	if a.leases[10] == nil || a.leases[10].ID != leashFor(10).ID {
		t.Fatalf("a received wrong leash: %v", a.leases[10])
	}

	err := reg.RegisterForWindow(b, 10)
	if !errors.Is(err, ErrDuplicateRegistration) {
		t.Fatalf("register b: got %v, want ErrDuplicateRegistration", err)
	}
	if len(b.events) != 0 {
		t.Fatalf("b received events: %s", b)
	}
	if err := reg.RegisterForWindow(a, 10); err != nil {
		t.Fatalf("re-register by same listener should be a no-op, got %v", err)
	}
}

func TestCategoryRegistrationDeliversExistingWindowsInOrder(t *testing.T) {
	reg := New(nil, nil)
	ids := []platform.WindowID{7, 3, 9}
	for _, id := range ids {
		reg.OnWindowAppeared(&platform.WindowInfo{ID: id, Mode: platform.ModeFullscreen}, leashFor(id))
	}
	reg.OnWindowAppeared(&platform.WindowInfo{ID: 4, Mode: platform.ModeFreeform}, leashFor(4))

	l := newRecorder("fs")
	if err := reg.RegisterForCategories(l, platform.ModeFullscreen); err != nil {
		t.Fatalf("register category: %v", err)
	}
	if len(l.events) != len(ids) {
		t.Fatalf("got %d events, want %d: %s", len(l.events), len(ids), l)
	}
	for i, id := range ids {
		if l.events[i] != (event{"appeared", id}) {
			t.Fatalf("event %d = %v, want appeared %d", i, l.events[i], id)
		}
	}

	other := newRecorder("other")
	if err := reg.RegisterForCategories(other, platform.ModeFullscreen); !errors.Is(err, ErrDuplicateRegistration) {
		t.Fatalf("second category owner: got %v, want ErrDuplicateRegistration", err)
	}
}

func TestUnregisterIsIdempotent(t *testing.T) {
	reg := New(nil, nil)
	a := newRecorder("a")
	fallback := newRecorder("fallback")
	if err := reg.RegisterForCategories(fallback, platform.ModeMultiWindow); err != nil {
		t.Fatal(err)
	}
	if err := reg.RegisterForWindow(a, 5); err != nil {
		t.Fatal(err)
	}
	reg.OnWindowAppeared(&platform.WindowInfo{ID: 5, Mode: platform.ModeMultiWindow}, leashFor(5))

	reg.Unregister(a)
	reg.Unregister(a)

	if got := a.count("vanished", 5); got != 1 {
		t.Fatalf("a vanished count = %d, want 1 (%s)", got, a)
	}
	if got := fallback.count("appeared", 5); got != 1 {
		t.Fatalf("fallback appeared count = %d, want 1 (%s)", got, fallback)
	}
	if reg.Owner(5) != Listener(fallback) {
		t.Fatalf("owner after unregister = %v, want fallback", reg.Owner(5))
	}
}

func TestResolutionPriority(t *testing.T) {
	tokenL := newRecorder("token")
	pendingL := newRecorder("pending")
	identityL := newRecorder("identity")
	parentL := newRecorder("parent")
	categoryL := newRecorder("category")

	info := &platform.WindowInfo{ID: 20, ParentID: 2, Mode: platform.ModePinned, LaunchToken: "tok"}

	tests := []struct {
		name  string
		setup func(r *Registry)
		want  Listener
		src   Source
	}{
		{
			name:  "nothing registered",
			setup: func(r *Registry) {},
			want:  nil,
			src:   SourceNone,
		},
		{
			name: "category only",
			setup: func(r *Registry) {
				_ = r.RegisterForCategories(categoryL, platform.ModePinned)
			},
			want: categoryL,
			src:  SourceCategory,
		},
		{
			name: "parent beats category",
			setup: func(r *Registry) {
				_ = r.RegisterForCategories(categoryL, platform.ModePinned)
				_ = r.RegisterForWindow(parentL, 2)
			},
			want: parentL,
			src:  SourceParent,
		},
		{
			name: "pending beats parent",
			setup: func(r *Registry) {
				_ = r.RegisterForWindow(parentL, 2)
				_ = r.RegisterForWindow(pendingL, 20)
			},
			want: pendingL,
			src:  SourcePending,
		},
		{
			name: "token beats everything",
			setup: func(r *Registry) {
				_ = r.RegisterForCategories(categoryL, platform.ModePinned)
				_ = r.RegisterForWindow(parentL, 2)
				_ = r.RegisterForWindow(pendingL, 20)
				r.RegisterLaunchToken("tok", tokenL)
			},
			want: tokenL,
			src:  SourceLaunchToken,
		},
		{
			name: "registration order does not matter",
			setup: func(r *Registry) {
				r.RegisterLaunchToken("tok", tokenL)
				_ = r.RegisterForWindow(pendingL, 20)
				_ = r.RegisterForWindow(parentL, 2)
				_ = r.RegisterForCategories(categoryL, platform.ModePinned)
			},
			want: tokenL,
			src:  SourceLaunchToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(nil, nil)
			tt.setup(r)
			for i := 0; i < 2; i++ {
				got, src := r.ResolveOwner(info)
				if got != tt.want || src != tt.src {
					t.Fatalf("run %d: ResolveOwner = (%v, %s), want (%v, %s)", i, got, src, tt.want, tt.src)
				}
			}
		})
	}

	// Identity registration after the window appeared.
	r := New(nil, nil)
	r.OnWindowAppeared(&platform.WindowInfo{ID: 21, ParentID: 2, Mode: platform.ModePinned}, leashFor(21))
	_ = r.RegisterForWindow(parentL, 2)
	_ = r.RegisterForWindow(identityL, 21)
	if got, src := r.ResolveOwner(&platform.WindowInfo{ID: 21, ParentID: 2}); got != Listener(identityL) || src != SourceIdentity {
		t.Fatalf("identity resolution = (%v, %s)", got, src)
	}
}

func TestLaunchTokenIsConsumedOnAppear(t *testing.T) {
	reg := New(nil, nil)
	l := newRecorder("launcher")
	reg.RegisterLaunchToken("abc", l)

	reg.OnWindowAppeared(&platform.WindowInfo{ID: 30, LaunchToken: "abc"}, leashFor(30))
	if got := l.count("appeared", 30); got != 1 {
		t.Fatalf("appeared count = %d", got)
	}

	// A second window carrying the same token no longer resolves to l.
	reg.OnWindowAppeared(&platform.WindowInfo{ID: 31, LaunchToken: "abc"}, leashFor(31))
	if got := l.count("appeared", 31); got != 0 {
		t.Fatalf("consumed token routed a second window")
	}

	// Identity registration took over for window 30.
	reg.OnWindowInfoChanged(&platform.WindowInfo{ID: 30, LaunchToken: "abc", Visible: true})
	if got := l.count("changed", 30); got != 1 {
		t.Fatalf("changed count = %d (%s)", got, l)
	}
}

func TestInfoChangeTransfersOwnership(t *testing.T) {
	reg := New(nil, nil)
	fs, free := newRecorder("fs"), newRecorder("free")
	_ = reg.RegisterForCategories(fs, platform.ModeFullscreen)
	_ = reg.RegisterForCategories(free, platform.ModeFreeform)

	reg.OnWindowAppeared(&platform.WindowInfo{ID: 40, Mode: platform.ModeFullscreen}, leashFor(40))
	reg.OnWindowInfoChanged(&platform.WindowInfo{ID: 40, Mode: platform.ModeFreeform})

	want := []event{{"appeared", 40}, {"vanished", 40}}
	if fmt.Sprint(fs.events) != fmt.Sprint(want) {
		t.Fatalf("fs events = %v, want %v", fs.events, want)
	}
	want = []event{{"appeared", 40}, {"changed", 40}}
	if fmt.Sprint(free.events) != fmt.Sprint(want) {
		t.Fatalf("free events = %v, want %v", free.events, want)
	}
}

func TestVanishedAndBackPressRouteToOwner(t *testing.T) {
	reg := New(nil, nil)
	a := newRecorder("a")
	_ = reg.RegisterForWindow(a, 50)
	reg.OnWindowAppeared(&platform.WindowInfo{ID: 50}, leashFor(50))
	reg.OnBackPressedOnRoot(&platform.WindowInfo{ID: 50})
	reg.OnWindowVanished(&platform.WindowInfo{ID: 50})

	if a.count("back", 50) != 1 || a.count("vanished", 50) != 1 {
		t.Fatalf("events = %s", a)
	}
	if _, _, ok := reg.Window(50); ok {
		t.Fatalf("window still tracked after vanish")
	}
	// Unknown ids are ignored.
	reg.OnWindowInfoChanged(&platform.WindowInfo{ID: 999})
	reg.OnBackPressedOnRoot(&platform.WindowInfo{ID: 999})
}

func TestChildSurfaceOpsRequireOwnership(t *testing.T) {
	reg := New(nil, nil)
	a, b := newRecorder("a"), newRecorder("b")
	_ = reg.RegisterForWindow(a, 60)
	reg.OnWindowAppeared(&platform.WindowInfo{ID: 60}, leashFor(60))

	builder := &platform.LeashBuilder{Name: "badge"}
	if err := reg.AttachChildSurface(a, 60, builder); err != nil {
		t.Fatalf("attach by owner: %v", err)
	}
	if builder.Parent == nil || builder.Parent.ID != leashFor(60).ID {
		t.Fatalf("builder parent = %v", builder.Parent)
	}
	if err := reg.AttachChildSurface(b, 60, &platform.LeashBuilder{}); !errors.Is(err, ErrNoSuchWindow) {
		t.Fatalf("attach by non-owner: got %v", err)
	}

	tx := platform.NewTransaction()
	child := &platform.Leash{ID: 77}
	if err := reg.ReparentChildSurface(b, 60, child, tx); !errors.Is(err, ErrNoSuchWindow) {
		t.Fatalf("reparent by non-owner: got %v", err)
	}
	if err := reg.ReparentChildSurface(a, 60, child, tx); err != nil {
		t.Fatalf("reparent by owner: %v", err)
	}
	if ops := tx.Ops(); len(ops) != 1 || ops[0].Kind != platform.OpReparent {
		t.Fatalf("ops = %v", ops)
	}
}

func TestFocusListenerFiresOnChangeOnly(t *testing.T) {
	reg := New(nil, nil)
	var focused []platform.WindowID
	reg.AddFocusListener(func(info *platform.WindowInfo) { focused = append(focused, info.ID) })

	reg.OnWindowAppeared(&platform.WindowInfo{ID: 1}, leashFor(1))
	reg.OnWindowAppeared(&platform.WindowInfo{ID: 2}, leashFor(2))

	reg.OnWindowInfoChanged(&platform.WindowInfo{ID: 1, Focused: true})
	reg.OnWindowInfoChanged(&platform.WindowInfo{ID: 1, Focused: true})
	reg.OnWindowInfoChanged(&platform.WindowInfo{ID: 1, Focused: true, Mode: platform.ModeFreeform})
	reg.OnWindowInfoChanged(&platform.WindowInfo{ID: 2})
	reg.OnWindowInfoChanged(&platform.WindowInfo{ID: 2, IsHome: true, Visible: true})

	want := []platform.WindowID{1, 1, 2}
	if fmt.Sprint(focused) != fmt.Sprint(want) {
		t.Fatalf("focus events = %v, want %v", focused, want)
	}
}

func TestLocusVisibility(t *testing.T) {
	reg := New(nil, nil)
	var got []string
	reg.AddLocusVisibilityListener(func(id platform.WindowID, locus string, visible bool) {
		got = append(got, fmt.Sprintf("%d:%s:%v", id, locus, visible))
	})

	reg.OnWindowAppeared(&platform.WindowInfo{ID: 1, Locus: "dock", Visible: true}, leashFor(1))
	reg.OnWindowInfoChanged(&platform.WindowInfo{ID: 1, Locus: "dock", Visible: true})
	reg.OnWindowInfoChanged(&platform.WindowInfo{ID: 1, Locus: "dock", Visible: false})
	reg.OnWindowInfoChanged(&platform.WindowInfo{ID: 1, Locus: "dock", Visible: true})
	reg.OnWindowVanished(&platform.WindowInfo{ID: 1})

	want := []string{"1:dock:true", "1:dock:false", "1:dock:true", "1:dock:false"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("locus events = %v, want %v", got, want)
	}
}

func TestHomeOverlayFollowsHomeWindow(t *testing.T) {
	sim := platform.NewSimCompositor(platform.Rect{Width: 800, Height: 600})
	reg := New(sim, nil)
	overlay, err := sim.CreateContainer("overlay", platform.Rect{Width: 10, Height: 10})
	if err != nil {
		t.Fatal(err)
	}
	reg.SetHomeOverlay(overlay)

	home := sim.AddWindow(platform.WindowInfo{IsHome: true, Visible: true})
	homeLeash := sim.LeashOf(home.ID)
	reg.OnWindowAppeared(home, homeLeash)

	surf, _ := sim.Surface(overlay)
	if surf.Parent != homeLeash.ID || !surf.Visible || surf.Layer != 1 {
		t.Fatalf("overlay not attached: %+v", surf)
	}

	reg.OnWindowVanished(home)
	surf, _ = sim.Surface(overlay)
	if surf.Parent != 0 || surf.Visible {
		t.Fatalf("overlay not detached: %+v", surf)
	}
}
