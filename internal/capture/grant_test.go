package capture

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func testOptions(t *testing.T, dir string) Options {
	t.Helper()
	return Options{
		LockDir: dir,
		goos:    "linux",
		getenv:  func(string) string { return "" },
		Display: ":99",
	}
}

func TestRequestIsExclusive(t *testing.T) {
	dir := t.TempDir()

	g, err := Request(testOptions(t, dir))
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if !g.IsValid() || g.Token() == "" {
		t.Fatalf("grant not valid: %+v", g)
	}

	if _, err := Request(testOptions(t, dir)); !errors.Is(err, ErrDeviceBusy) {
		t.Fatalf("second Request = %v, want ErrDeviceBusy", err)
	}

	if err := g.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if g.IsValid() {
		t.Error("grant still valid after release")
	}
	if err := g.Release(); err != nil {
		t.Errorf("second Release: %v", err)
	}

	g2, err := Request(testOptions(t, dir))
	if err != nil {
		t.Fatalf("Request after release: %v", err)
	}
	g2.Release()
}

func TestBusy(t *testing.T) {
	dir := t.TempDir()

	if busy, err := Busy(filepath.Join(dir, "missing")); err != nil || busy {
		t.Errorf("Busy(missing dir) = %v, %v", busy, err)
	}
	if busy, err := Busy(dir); err != nil || busy {
		t.Errorf("Busy(free) = %v, %v", busy, err)
	}

	g, err := Request(testOptions(t, dir))
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if busy, err := Busy(dir); err != nil || !busy {
		t.Errorf("Busy(held) = %v, %v", busy, err)
	}
	g.Release()

	// Probing must not leave the lock held.
	g, err = Request(testOptions(t, dir))
	if err != nil {
		t.Fatalf("Request after probe: %v", err)
	}
	g.Release()
}

func TestRequestNeedsDisplay(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		display string
		want    string
		wantErr bool
	}{
		{name: "explicit", display: ":1", want: ":1"},
		{name: "from env", env: map[string]string{"DISPLAY": ":0"}, want: ":0"},
		{name: "wayland only", env: map[string]string{"WAYLAND_DISPLAY": "wayland-0"}, wantErr: true},
		{name: "none", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Options{
				LockDir: t.TempDir(),
				Display: tt.display,
				goos:    "linux",
				getenv:  func(k string) string { return tt.env[k] },
			}
			g, err := Request(opts)
			if tt.wantErr {
				if !errors.Is(err, ErrNoDisplay) {
					t.Fatalf("Request = %v, want ErrNoDisplay", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Request: %v", err)
			}
			defer g.Release()
			if g.Display() != tt.want {
				t.Errorf("display = %q, want %q", g.Display(), tt.want)
			}
		})
	}
}

func TestCreateSurfaceTarget(t *testing.T) {
	g, err := Request(testOptions(t, t.TempDir()))
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	defer g.Release()

	if _, err := g.CreateSurfaceTarget(0, 720, 0); err == nil {
		t.Error("expected error for zero width")
	}

	s, err := g.CreateSurfaceTarget(1280, 720, 1)
	if err != nil {
		t.Fatalf("CreateSurfaceTarget: %v", err)
	}
	if _, err := g.CreateSurfaceTarget(1280, 720, 1); err == nil {
		t.Error("second live surface should be rejected")
	}

	surf := s.(*Surface)
	if w, h := surf.Size(); w != 1280 || h != 720 {
		t.Errorf("size = %dx%d", w, h)
	}
	want := []string{"-f", "x11grab", "-draw_mouse", "1", "-i", ":99"}
	if got := surf.InputArgs(); !reflect.DeepEqual(got, want) {
		t.Errorf("InputArgs = %v, want %v", got, want)
	}

	if err := s.Release(); err != nil {
		t.Fatalf("surface Release: %v", err)
	}
	if err := s.Release(); err != nil {
		t.Errorf("second surface Release: %v", err)
	}
	if _, err := g.CreateSurfaceTarget(854, 480, 0); err != nil {
		t.Errorf("surface after release: %v", err)
	}
}

func TestReleasedGrantRejectsSurface(t *testing.T) {
	g, err := Request(testOptions(t, t.TempDir()))
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	s, err := g.CreateSurfaceTarget(854, 480, 0)
	if err != nil {
		t.Fatalf("CreateSurfaceTarget: %v", err)
	}
	if err := g.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if !s.(*Surface).released {
		t.Error("grant release should release the live surface")
	}
	if _, err := g.CreateSurfaceTarget(854, 480, 0); !errors.Is(err, ErrGrantReleased) {
		t.Errorf("CreateSurfaceTarget after release = %v, want ErrGrantReleased", err)
	}
}

func TestInputArgs(t *testing.T) {
	tests := []struct {
		goos    string
		display string
		want    []string
	}{
		{"linux", ":0.0", []string{"-f", "x11grab", "-draw_mouse", "1", "-i", ":0.0"}},
		{"darwin", "", []string{"-f", "avfoundation", "-capture_cursor", "1", "-i", "Capture screen 0:none"}},
		{"darwin", "2", []string{"-f", "avfoundation", "-capture_cursor", "1", "-i", "2:none"}},
		{"windows", "", []string{"-f", "gdigrab", "-i", "desktop"}},
	}
	for _, tt := range tests {
		if got := inputArgs(tt.goos, tt.display); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("inputArgs(%q, %q) = %v, want %v", tt.goos, tt.display, got, tt.want)
		}
	}
}
