package dashboard

import (
	"context"
	"errors"
	"testing"

	"github.com/jmorrell/homedeck/internal/device"
)

// fakeDeviceAPI scripts the store's API surface.
type fakeDeviceAPI struct {
	devices []device.Device
	listErr error

	controlFn func(id string, patch device.State) (*device.Device, error)
}

func (f *fakeDeviceAPI) ListDevices(_ context.Context) ([]device.Device, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.devices, nil
}

func (f *fakeDeviceAPI) ControlDevice(_ context.Context, id string, patch device.State) (*device.Device, error) {
	return f.controlFn(id, patch)
}

func storeLight(id string, power bool) device.Device {
	return device.Device{
		ID:      id,
		Name:    "Light " + id,
		Type:    device.TypeLight,
		Enabled: true,
		State:   device.State{"power": power, "brightness": 50.0},
	}
}

func TestStoreLoadDevices(t *testing.T) {
	api := &fakeDeviceAPI{devices: []device.Device{storeLight("l1", true), storeLight("l2", false)}}
	store := NewStore(api)

	if err := store.LoadDevices(context.Background()); err != nil {
		t.Fatalf("LoadDevices() error = %v", err)
	}

	if got := len(store.Devices()); got != 2 {
		t.Errorf("cached devices = %d, want 2", got)
	}
	if agg := store.Aggregates(); agg.ActiveDevices != 1 {
		t.Errorf("active = %d, want 1", agg.ActiveDevices)
	}
}

func TestStoreLoadFailsSoft(t *testing.T) {
	api := &fakeDeviceAPI{devices: []device.Device{storeLight("l1", true)}}
	store := NewStore(api)
	if err := store.LoadDevices(context.Background()); err != nil {
		t.Fatalf("initial load error = %v", err)
	}

	var rendered bool
	store.SetRenderHook(func(cards []Card, _ device.Aggregates) {
		rendered = true
		if len(cards) != 0 {
			t.Errorf("cards after failed load = %d, want 0", len(cards))
		}
	})

	api.listErr = errors.New("connection refused")
	if err := store.LoadDevices(context.Background()); err == nil {
		t.Fatal("LoadDevices() returned nil for a transport failure")
	}

	if got := len(store.Devices()); got != 0 {
		t.Errorf("cache after failed load = %d devices, want empty", got)
	}
	if !rendered {
		t.Error("render hook not invoked on failed load")
	}
}

func TestStoreSetPropertyClampAwareMerge(t *testing.T) {
	// The server clamps 50 to the thermostat maximum of 35; the cache
	// must hold the confirmed value, not the requested one.
	thermo := device.Device{
		ID: "t1", Name: "Thermostat", Type: device.TypeThermostat, Enabled: true,
		State: device.State{"target_temperature": 21.0},
	}
	api := &fakeDeviceAPI{devices: []device.Device{thermo}}
	api.controlFn = func(id string, patch device.State) (*device.Device, error) {
		confirmed := thermo
		confirmed.State = device.State{"target_temperature": 35.0}
		return &confirmed, nil
	}
	store := NewStore(api)
	if err := store.LoadDevices(context.Background()); err != nil {
		t.Fatalf("load error = %v", err)
	}

	updated, err := store.SetProperty(context.Background(), "t1", "target_temperature", 50.0)
	if err != nil {
		t.Fatalf("SetProperty() error = %v", err)
	}
	if updated.State["target_temperature"] != 35.0 {
		t.Errorf("returned value = %v, want 35", updated.State["target_temperature"])
	}

	cached, ok := store.Device("t1")
	if !ok {
		t.Fatal("device missing from cache")
	}
	if cached.State["target_temperature"] != 35.0 {
		t.Errorf("cached value = %v, want clamped 35", cached.State["target_temperature"])
	}
}

func TestStoreSetPropertyNotCached(t *testing.T) {
	store := NewStore(&fakeDeviceAPI{})

	_, err := store.SetProperty(context.Background(), "ghost", "power", true)
	if !errors.Is(err, ErrDeviceNotCached) {
		t.Errorf("error = %v, want ErrDeviceNotCached", err)
	}
}

func TestStoreInFlightRejection(t *testing.T) {
	light := storeLight("l1", false)
	api := &fakeDeviceAPI{devices: []device.Device{light}}

	release := make(chan struct{})
	started := make(chan struct{})
	api.controlFn = func(id string, patch device.State) (*device.Device, error) {
		close(started)
		<-release
		confirmed := light
		confirmed.State = device.State{"power": true}
		return &confirmed, nil
	}

	store := NewStore(api)
	if err := store.LoadDevices(context.Background()); err != nil {
		t.Fatalf("load error = %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := store.SetProperty(context.Background(), "l1", "power", true)
		done <- err
	}()
	<-started

	// Same device and property: rejected while the first is pending.
	if _, err := store.SetProperty(context.Background(), "l1", "power", false); !errors.Is(err, ErrRequestInFlight) {
		t.Errorf("concurrent write error = %v, want ErrRequestInFlight", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first write error = %v", err)
	}

	// The key is released once the first write lands.
	if _, err := store.SetProperty(context.Background(), "l1", "power", false); err != nil {
		t.Errorf("write after release error = %v", err)
	}
}

func TestStoreToggle(t *testing.T) {
	light := storeLight("l1", false)
	light.State = device.State{} // no power key at all
	api := &fakeDeviceAPI{devices: []device.Device{light}}

	var sent device.State
	api.controlFn = func(id string, patch device.State) (*device.Device, error) {
		sent = patch
		confirmed := light
		confirmed.State = device.State{"power": patch["power"]}
		return &confirmed, nil
	}

	store := NewStore(api)
	if err := store.LoadDevices(context.Background()); err != nil {
		t.Fatalf("load error = %v", err)
	}

	before := store.Aggregates().ActiveDevices

	// Missing power reads as off, so the first toggle turns on.
	if _, err := store.Toggle(context.Background(), "l1"); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if sent["power"] != true {
		t.Errorf("toggle sent %v, want power=true", sent)
	}

	after := store.Aggregates().ActiveDevices
	if after != before+1 {
		t.Errorf("active count %d -> %d, want +1", before, after)
	}

	// Second toggle turns back off.
	if _, err := store.Toggle(context.Background(), "l1"); err != nil {
		t.Fatalf("second Toggle() error = %v", err)
	}
	if sent["power"] != false {
		t.Errorf("second toggle sent %v, want power=false", sent)
	}
}

func TestStoreApplyConfirmed(t *testing.T) {
	api := &fakeDeviceAPI{devices: []device.Device{storeLight("l1", false)}}
	store := NewStore(api)
	if err := store.LoadDevices(context.Background()); err != nil {
		t.Fatalf("load error = %v", err)
	}

	var renders int
	store.SetRenderHook(func([]Card, device.Aggregates) { renders++ })

	store.ApplyConfirmed("l1", "power", true)

	cached, _ := store.Device("l1")
	if cached.State["power"] != true {
		t.Errorf("power = %v, want true", cached.State["power"])
	}
	if store.Aggregates().ActiveDevices != 1 {
		t.Errorf("active = %d, want 1", store.Aggregates().ActiveDevices)
	}
	if renders != 1 {
		t.Errorf("renders = %d, want 1", renders)
	}

	// Unknown device is a no-op, not a panic.
	store.ApplyConfirmed("ghost", "power", true)
}
