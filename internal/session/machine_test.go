package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestMachineLifecycle(t *testing.T) {
	f := newFixture(t)
	m := f.machine
	checkHandleInvariant(t, m)

	if err := m.Start(f.cfg, f.grant); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if m.State() != StateCountdown {
		t.Fatalf("state = %s, want countdown", m.State())
	}
	checkHandleInvariant(t, m)

	if err := m.CountdownComplete(); err != nil {
		t.Fatalf("CountdownComplete: %v", err)
	}
	if m.State() != StateRecording {
		t.Fatalf("state = %s, want recording", m.State())
	}
	checkHandleInvariant(t, m)
	enc, surf := m.handles()

	if err := m.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	checkHandleInvariant(t, m)
	if err := m.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	checkHandleInvariant(t, m)

	enc2, surf2 := m.handles()
	if enc2 != enc || surf2 != surf {
		t.Error("pause/resume reallocated encoder or surface")
	}

	art, err := m.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	checkHandleInvariant(t, m)
	if m.State() != StateIdle {
		t.Errorf("state after stop = %s, want idle", m.State())
	}
	if art == nil {
		t.Fatal("expected artifact")
	}
	if art.Path != f.cfg.OutputPath {
		t.Errorf("artifact path = %s, want %s", art.Path, f.cfg.OutputPath)
	}
	if art.DurationMs() <= 0 {
		t.Errorf("artifact duration = %d ms, want > 0", art.DurationMs())
	}
	if art.SizeBytes != int64(len("mp4-bytes")) {
		t.Errorf("artifact size = %d", art.SizeBytes)
	}
	if art.Incomplete {
		t.Error("artifact should not be incomplete")
	}
}

func TestMachineStopReleasesInOrder(t *testing.T) {
	tests := []struct {
		name        string
		finalizeErr error
		wantErr     bool
	}{
		{"clean", nil, false},
		{"finalize fails", errBoom, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.factory.tweak = func(e *fakeEncoder) { e.finalizeErr = tt.finalizeErr }

			if err := f.machine.Start(f.cfg, f.grant); err != nil {
				t.Fatalf("Start: %v", err)
			}
			if err := f.machine.CountdownComplete(); err != nil {
				t.Fatalf("CountdownComplete: %v", err)
			}

			art, err := f.machine.Stop(context.Background())
			if tt.wantErr != (err != nil) {
				t.Fatalf("Stop error = %v, wantErr %v", err, tt.wantErr)
			}
			if f.machine.State() != StateIdle {
				t.Errorf("state = %s, want idle", f.machine.State())
			}

			var teardown []string
			for _, c := range f.log.all() {
				switch c {
				case "encoder.finalize", "surface.release", "grant.release":
					teardown = append(teardown, c)
				}
			}
			want := []string{"encoder.finalize", "surface.release", "grant.release"}
			if !reflect.DeepEqual(teardown, want) {
				t.Errorf("teardown order = %v, want %v", teardown, want)
			}

			if tt.wantErr {
				if !errors.Is(err, ErrTeardownPartialFailure) {
					t.Errorf("error %v should match ErrTeardownPartialFailure", err)
				}
				var td *TeardownError
				if !errors.As(err, &td) || !td.Failed(StepFinalizeEncoder) {
					t.Errorf("expected finalize step failure, got %v", err)
				}
				if art == nil || !art.Incomplete {
					t.Errorf("artifact = %+v, want incomplete artifact", art)
				}
			}
		})
	}
}

func TestMachineTeardownAttemptsEveryStep(t *testing.T) {
	f := newFixture(t)
	f.factory.tweak = func(e *fakeEncoder) { e.finalizeErr = errBoom }
	f.grant.releaseErr = errBoom

	if err := f.machine.Start(f.cfg, f.grant); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.machine.CountdownComplete(); err != nil {
		t.Fatalf("CountdownComplete: %v", err)
	}
	_, surf := f.machine.handles()
	surf.(*fakeSurface).releaseErr = errBoom

	_, err := f.machine.Stop(context.Background())
	var td *TeardownError
	if !errors.As(err, &td) {
		t.Fatalf("expected *TeardownError, got %v", err)
	}
	for _, step := range []TeardownStep{StepFinalizeEncoder, StepReleaseSurface, StepReleaseGrant} {
		if !td.Failed(step) {
			t.Errorf("step %q not reported", step)
		}
	}
	if f.machine.State() != StateIdle {
		t.Errorf("state = %s, want idle", f.machine.State())
	}
}

func TestMachineStartRejectsInvalidConfig(t *testing.T) {
	f := newFixture(t)
	cfg := f.cfg
	cfg.OutputPath = filepath.Join(t.TempDir(), "missing", "a.mp4")

	err := f.machine.Start(cfg, f.grant)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Start error = %v, want ErrInvalidConfig", err)
	}
	if f.machine.State() != StateIdle {
		t.Errorf("state = %s, want idle", f.machine.State())
	}
	if n := f.log.count("grant.release"); n != 0 {
		t.Errorf("grant released %d times, want 0", n)
	}
	if n := f.log.count("grant.surface"); n != 0 {
		t.Errorf("surface requested %d times, want 0", n)
	}
}

func TestMachineStartRejectsInvalidGrant(t *testing.T) {
	f := newFixture(t)
	f.grant.valid = false

	if err := f.machine.Start(f.cfg, f.grant); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Start error = %v, want ErrInvalidConfig", err)
	}
	if err := f.machine.Start(f.cfg, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Start(nil grant) error = %v, want ErrInvalidConfig", err)
	}
	if f.machine.State() != StateIdle {
		t.Errorf("state = %s, want idle", f.machine.State())
	}
}

func TestMachineStartWhileActive(t *testing.T) {
	f := newFixture(t)
	if err := f.machine.Start(f.cfg, f.grant); err != nil {
		t.Fatalf("Start: %v", err)
	}
	other := &fakeGrant{log: f.log, valid: true}
	if err := f.machine.Start(f.cfg, other); !errors.Is(err, ErrSessionAlreadyActive) {
		t.Fatalf("second Start error = %v, want ErrSessionAlreadyActive", err)
	}
}

func TestMachineSetupFailureRollsBack(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
		want  []string
	}{
		{
			name:  "surface fails",
			setup: func(f *fixture) { f.grant.surfaceErr = errBoom },
			want:  []string{"grant.surface", "grant.release"},
		},
		{
			name:  "configure fails",
			setup: func(f *fixture) { f.factory.configureErr = errBoom },
			want:  []string{"grant.surface", "factory.configure", "surface.release", "grant.release"},
		},
		{
			name:  "encoder start fails",
			setup: func(f *fixture) { f.factory.tweak = func(e *fakeEncoder) { e.startErr = errBoom } },
			want:  []string{"grant.surface", "factory.configure", "encoder.start", "encoder.finalize", "surface.release", "grant.release"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)

			if err := f.machine.Start(f.cfg, f.grant); err != nil {
				t.Fatalf("Start: %v", err)
			}
			err := f.machine.CountdownComplete()
			if !errors.Is(err, ErrCaptureSetupFailed) {
				t.Fatalf("CountdownComplete error = %v, want ErrCaptureSetupFailed", err)
			}
			if !errors.Is(err, errBoom) {
				t.Errorf("error %v should wrap the cause", err)
			}
			if f.machine.State() != StateIdle {
				t.Errorf("state = %s, want idle", f.machine.State())
			}
			checkHandleInvariant(t, f.machine)
			if got := f.log.all(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("calls = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMachinePauseUnsupported(t *testing.T) {
	f := newFixture(t)
	f.factory.tweak = func(e *fakeEncoder) { e.noPause = true }

	if err := f.machine.Start(f.cfg, f.grant); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.machine.CountdownComplete(); err != nil {
		t.Fatalf("CountdownComplete: %v", err)
	}

	if err := f.machine.Pause(); !errors.Is(err, ErrPauseUnsupported) {
		t.Fatalf("Pause error = %v, want ErrPauseUnsupported", err)
	}
	if f.machine.State() != StateRecording {
		t.Errorf("state = %s, want recording", f.machine.State())
	}
	if n := f.log.count("encoder.pause"); n != 0 {
		t.Errorf("encoder pause called %d times, want 0", n)
	}
}

func TestMachineInvalidTransitions(t *testing.T) {
	f := newFixture(t)
	m := f.machine

	if err := m.Pause(); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("Pause while idle = %v, want ErrNoActiveSession", err)
	}
	if _, err := m.Stop(context.Background()); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("Stop while idle = %v, want ErrNoActiveSession", err)
	}
	if err := m.Cancel(); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("Cancel while idle = %v, want ErrNoActiveSession", err)
	}

	if err := m.Start(f.cfg, f.grant); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Pause(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Pause during countdown = %v, want ErrInvalidTransition", err)
	}
	if _, err := m.Stop(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Stop during countdown = %v, want ErrInvalidTransition", err)
	}

	if err := m.CountdownComplete(); err != nil {
		t.Fatalf("CountdownComplete: %v", err)
	}
	if err := m.Resume(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Resume while recording = %v, want ErrInvalidTransition", err)
	}
	if err := m.Cancel(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Cancel while recording = %v, want ErrInvalidTransition", err)
	}
	if err := m.CountdownComplete(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second CountdownComplete = %v, want ErrInvalidTransition", err)
	}
}

func TestMachineCancelReleasesGrantOnly(t *testing.T) {
	f := newFixture(t)
	if err := f.machine.Start(f.cfg, f.grant); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.machine.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got, want := f.log.all(), []string{"grant.release"}; !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if f.machine.State() != StateIdle {
		t.Errorf("state = %s, want idle", f.machine.State())
	}
}

func TestMachineTerminate(t *testing.T) {
	t.Run("recording", func(t *testing.T) {
		f := newFixture(t)
		if err := f.machine.Start(f.cfg, f.grant); err != nil {
			t.Fatalf("Start: %v", err)
		}
		if err := f.machine.CountdownComplete(); err != nil {
			t.Fatalf("CountdownComplete: %v", err)
		}
		if err := f.machine.Pause(); err != nil {
			t.Fatalf("Pause: %v", err)
		}
		if err := f.machine.Terminate(context.Background()); err != nil {
			t.Fatalf("Terminate: %v", err)
		}
		if f.machine.State() != StateIdle {
			t.Errorf("state = %s, want idle", f.machine.State())
		}
		for _, c := range []string{"encoder.finalize", "surface.release", "grant.release"} {
			if f.log.count(c) != 1 {
				t.Errorf("%s called %d times, want 1", c, f.log.count(c))
			}
		}
	})

	t.Run("idle", func(t *testing.T) {
		f := newFixture(t)
		if err := f.machine.Terminate(context.Background()); err != nil {
			t.Fatalf("Terminate while idle: %v", err)
		}
		if len(f.log.all()) != 0 {
			t.Errorf("unexpected calls %v", f.log.all())
		}
	})
}

func TestMachineStopMissingOutput(t *testing.T) {
	f := newFixture(t)
	if err := f.machine.Start(f.cfg, f.grant); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.machine.CountdownComplete(); err != nil {
		t.Fatalf("CountdownComplete: %v", err)
	}
	if err := os.Remove(f.cfg.OutputPath); err != nil {
		t.Fatalf("remove output: %v", err)
	}

	art, err := f.machine.Stop(context.Background())
	if art != nil {
		t.Errorf("artifact = %+v, want nil", art)
	}
	if !errors.Is(err, ErrEncoder) {
		t.Errorf("Stop error = %v, want ErrEncoder", err)
	}
	if f.machine.State() != StateIdle {
		t.Errorf("state = %s, want idle", f.machine.State())
	}
}

func TestMachineSnapshot(t *testing.T) {
	f := newFixture(t)
	if st := f.machine.Snapshot(); st.State != StateIdle || st.Active() {
		t.Fatalf("idle snapshot = %+v", st)
	}
	if err := f.machine.Start(f.cfg, f.grant); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.machine.CountdownComplete(); err != nil {
		t.Fatalf("CountdownComplete: %v", err)
	}
	st := f.machine.Snapshot()
	if st.State != StateRecording || !st.HasEncoder || !st.HasSurface {
		t.Errorf("recording snapshot = %+v", st)
	}
	if st.SessionID == "" || st.OutputPath != f.cfg.OutputPath {
		t.Errorf("snapshot identity = %+v", st)
	}
}
