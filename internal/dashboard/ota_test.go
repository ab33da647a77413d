package dashboard

import (
	"context"
	"errors"
	"testing"

	"github.com/jmorrell/homedeck/internal/ota"
)

// fakeOTAAPI scripts the coordinator's API surface.
type fakeOTAAPI struct {
	startFn  func(deviceID, version string) (*ota.Update, error)
	statusFn func(deviceID string) (*ota.Update, error)
	cancelFn func(deviceID string) (*ota.Update, error)
}

func (f *fakeOTAAPI) StartUpdate(_ context.Context, deviceID, version string, _ ota.Options) (*ota.Update, error) {
	return f.startFn(deviceID, version)
}

func (f *fakeOTAAPI) UpdateStatus(_ context.Context, deviceID string) (*ota.Update, error) {
	return f.statusFn(deviceID)
}

func (f *fakeOTAAPI) CancelUpdate(_ context.Context, deviceID string) (*ota.Update, error) {
	return f.cancelFn(deviceID)
}

// staticDirectory marks a fixed set of sensors online.
type staticDirectory map[string]bool

func (d staticDirectory) Online(deviceID string) bool { return d[deviceID] }

func initiatedUpdate(deviceID string) *ota.Update {
	return &ota.Update{ID: "upd-" + deviceID, DeviceID: deviceID, Status: ota.StatusInitiated}
}

func TestCoordinatorStartUpdate(t *testing.T) {
	api := &fakeOTAAPI{
		startFn: func(deviceID, version string) (*ota.Update, error) {
			return initiatedUpdate(deviceID), nil
		},
	}
	co := NewCoordinator(api, staticDirectory{"esp-1": true})

	upd, err := co.StartUpdate(context.Background(), "esp-1", "2.0.0", ota.Options{})
	if err != nil {
		t.Fatalf("StartUpdate() error = %v", err)
	}
	if upd.Status != ota.StatusInitiated {
		t.Errorf("status = %q", upd.Status)
	}
	if co.ActiveCount() != 1 {
		t.Errorf("active = %d, want 1", co.ActiveCount())
	}

	t.Run("second start rejected locally", func(t *testing.T) {
		_, err := co.StartUpdate(context.Background(), "esp-1", "2.0.1", ota.Options{})
		if !errors.Is(err, ErrUpdateActive) {
			t.Errorf("error = %v, want ErrUpdateActive", err)
		}
	})

	t.Run("offline device rejected", func(t *testing.T) {
		_, err := co.StartUpdate(context.Background(), "esp-dark", "2.0.0", ota.Options{})
		if !errors.Is(err, ErrDeviceOffline) {
			t.Errorf("error = %v, want ErrDeviceOffline", err)
		}
	})
}

func TestCoordinatorPoll(t *testing.T) {
	serverView := map[string]*ota.Update{}
	api := &fakeOTAAPI{
		startFn: func(deviceID, version string) (*ota.Update, error) {
			return initiatedUpdate(deviceID), nil
		},
		statusFn: func(deviceID string) (*ota.Update, error) {
			upd, ok := serverView[deviceID]
			if !ok {
				return nil, errors.New("transport down")
			}
			return upd, nil
		},
	}
	co := NewCoordinator(api, nil)

	var reloads int
	co.SetReloadHook(func() { reloads++ })
	var events []ota.Update
	co.SetEventHook(func(upd ota.Update) { events = append(events, upd) })

	if _, err := co.StartUpdate(context.Background(), "esp-1", "2.0.0", ota.Options{}); err != nil {
		t.Fatalf("StartUpdate() error = %v", err)
	}

	t.Run("overwrites with server view", func(t *testing.T) {
		serverView["esp-1"] = &ota.Update{ID: "upd-esp-1", DeviceID: "esp-1", Status: ota.StatusInstalling, Progress: 50}
		co.Poll(context.Background())

		upd, ok := co.Active("esp-1")
		if !ok {
			t.Fatal("active record vanished")
		}
		if upd.Status != ota.StatusInstalling || upd.Progress != 50 {
			t.Errorf("record = %+v, want installing/50", upd)
		}
		if reloads != 0 {
			t.Errorf("reloads = %d, want 0 while in progress", reloads)
		}
	})

	t.Run("transport failure keeps record", func(t *testing.T) {
		delete(serverView, "esp-1")
		co.Poll(context.Background())
		if _, ok := co.Active("esp-1"); !ok {
			t.Error("record dropped on a failed poll cycle")
		}
	})

	t.Run("completed removes and reloads exactly once", func(t *testing.T) {
		serverView["esp-1"] = &ota.Update{ID: "upd-esp-1", DeviceID: "esp-1", Status: ota.StatusCompleted, Progress: 100}
		co.Poll(context.Background())

		if _, ok := co.Active("esp-1"); ok {
			t.Error("terminal record still tracked")
		}
		if reloads != 1 {
			t.Errorf("reloads = %d, want 1", reloads)
		}
		if len(events) != 1 || events[0].Status != ota.StatusCompleted {
			t.Errorf("events = %+v, want one completed", events)
		}

		// Nothing left to poll; no further reloads.
		co.Poll(context.Background())
		if reloads != 1 {
			t.Errorf("reloads after idle poll = %d, want still 1", reloads)
		}
	})
}

func TestCoordinatorPollFailedUpdate(t *testing.T) {
	api := &fakeOTAAPI{
		startFn: func(deviceID, version string) (*ota.Update, error) {
			return initiatedUpdate(deviceID), nil
		},
		statusFn: func(deviceID string) (*ota.Update, error) {
			return &ota.Update{ID: "upd-" + deviceID, DeviceID: deviceID, Status: ota.StatusFailed, Progress: 50}, nil
		},
	}
	co := NewCoordinator(api, nil)

	var reloads int
	co.SetReloadHook(func() { reloads++ })

	if _, err := co.StartUpdate(context.Background(), "esp-1", "2.0.0", ota.Options{}); err != nil {
		t.Fatalf("StartUpdate() error = %v", err)
	}
	co.Poll(context.Background())

	if _, ok := co.Active("esp-1"); ok {
		t.Error("failed record still tracked")
	}
	if reloads != 0 {
		t.Errorf("reloads = %d, want 0 for a failed rollout", reloads)
	}
}

func TestCoordinatorCancel(t *testing.T) {
	api := &fakeOTAAPI{
		startFn: func(deviceID, version string) (*ota.Update, error) {
			return initiatedUpdate(deviceID), nil
		},
		cancelFn: func(deviceID string) (*ota.Update, error) {
			return &ota.Update{ID: "upd-" + deviceID, DeviceID: deviceID, Status: ota.StatusCancelled}, nil
		},
	}
	co := NewCoordinator(api, nil)

	t.Run("nothing active", func(t *testing.T) {
		_, err := co.Cancel(context.Background(), "esp-1")
		if !errors.Is(err, ErrNoActiveUpdate) {
			t.Errorf("error = %v, want ErrNoActiveUpdate", err)
		}
	})

	t.Run("removes record immediately", func(t *testing.T) {
		if _, err := co.StartUpdate(context.Background(), "esp-1", "2.0.0", ota.Options{}); err != nil {
			t.Fatalf("StartUpdate() error = %v", err)
		}

		upd, err := co.Cancel(context.Background(), "esp-1")
		if err != nil {
			t.Fatalf("Cancel() error = %v", err)
		}
		if upd.Status != ota.StatusCancelled {
			t.Errorf("status = %q", upd.Status)
		}
		if co.ActiveCount() != 0 {
			t.Errorf("active = %d, want 0", co.ActiveCount())
		}
	})
}

func TestDeriveSteps(t *testing.T) {
	stepStates := func(steps []Step) []string {
		out := make([]string, len(steps))
		for i, s := range steps {
			out[i] = s.State
		}
		return out
	}

	tests := []struct {
		name string
		upd  *ota.Update
		want []string
	}{
		{
			"installing",
			&ota.Update{Status: ota.StatusInstalling, Progress: 50},
			[]string{StepCompleted, StepCompleted, StepActive, StepPending, StepPending},
		},
		{
			"initiated",
			&ota.Update{Status: ota.StatusInitiated},
			[]string{StepActive, StepPending, StepPending, StepPending, StepPending},
		},
		{
			"failed at installing",
			&ota.Update{Status: ota.StatusFailed, Progress: 50},
			[]string{StepError, StepError, StepError, StepPending, StepPending},
		},
		{
			"completed",
			&ota.Update{Status: ota.StatusCompleted, Progress: 100},
			[]string{StepCompleted, StepCompleted, StepCompleted, StepCompleted, StepCompleted},
		},
		{
			"in_progress falls back to percentage",
			&ota.Update{Status: ota.StatusInProgress, Progress: 80},
			[]string{StepCompleted, StepCompleted, StepCompleted, StepActive, StepPending},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stepStates(DeriveSteps(tt.upd))
			if len(got) != len(tt.want) {
				t.Fatalf("steps = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("step %d (%s) = %s, want %s", i, ota.StepOrder[i], got[i], tt.want[i])
				}
			}
		})
	}
}
