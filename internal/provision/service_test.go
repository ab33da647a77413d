package provision

import (
	"context"
	"strings"
	"testing"

	"github.com/jmorrell/homedeck/internal/device"
	"github.com/jmorrell/homedeck/internal/room"
)

// fakeDevices applies the real device validation on create.
type fakeDevices struct {
	devices map[string]*device.Device
}

func newFakeDevices() *fakeDevices {
	return &fakeDevices{devices: map[string]*device.Device{}}
}

func (f *fakeDevices) ListDevices(context.Context) ([]device.Device, error) {
	var out []device.Device
	for _, d := range f.devices {
		out = append(out, *d.DeepCopy())
	}
	return out, nil
}

func (f *fakeDevices) GetDevice(_ context.Context, id string) (*device.Device, error) {
	d, ok := f.devices[id]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	return d.DeepCopy(), nil
}

func (f *fakeDevices) CreateDevice(_ context.Context, d *device.Device) error {
	if err := device.ValidateDevice(d); err != nil {
		return err
	}
	if _, exists := f.devices[d.ID]; exists {
		return device.ErrDeviceExists
	}
	f.devices[d.ID] = d.DeepCopy()
	return nil
}

func (f *fakeDevices) DeleteDevice(_ context.Context, id string) error {
	if _, ok := f.devices[id]; !ok {
		return device.ErrDeviceNotFound
	}
	delete(f.devices, id)
	return nil
}

type fakeRooms struct {
	rooms map[string]*room.Room
}

func newFakeRooms() *fakeRooms {
	return &fakeRooms{rooms: map[string]*room.Room{}}
}

func (f *fakeRooms) List(context.Context) ([]room.Room, error) {
	var out []room.Room
	for _, r := range f.rooms {
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeRooms) GetByID(_ context.Context, id string) (*room.Room, error) {
	r, ok := f.rooms[id]
	if !ok {
		return nil, room.ErrRoomNotFound
	}
	cpy := *r
	return &cpy, nil
}

func (f *fakeRooms) Create(_ context.Context, r *room.Room) error {
	if _, exists := f.rooms[r.ID]; exists {
		return room.ErrRoomExists
	}
	if err := r.Validate(); err != nil {
		return err
	}
	cpy := *r
	f.rooms[r.ID] = &cpy
	return nil
}

func (f *fakeRooms) DeleteAll(context.Context) (int64, error) {
	n := int64(len(f.rooms))
	f.rooms = map[string]*room.Room{}
	return n, nil
}

func setupTestService(_ *testing.T) (*Service, *fakeDevices, *fakeRooms) {
	devices := newFakeDevices()
	rooms := newFakeRooms()
	return NewService(devices, rooms), devices, rooms
}

func TestService_ResetInstallsDefaults(t *testing.T) {
	svc, devices, rooms := setupTestService(t)
	ctx := context.Background()

	// Pre-existing junk should be wiped.
	roomID := "old_room"
	rooms.rooms[roomID] = &room.Room{ID: roomID, Name: "Old"}
	devices.devices["old"] = &device.Device{ID: "old", Name: "Old", Type: device.TypeCustom}

	if err := svc.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	if len(rooms.rooms) != 5 {
		t.Errorf("got %d rooms, want 5", len(rooms.rooms))
	}
	if len(devices.devices) != 5 {
		t.Errorf("got %d devices, want 5", len(devices.devices))
	}
	if _, ok := rooms.rooms["old_room"]; ok {
		t.Error("old room should be gone after reset")
	}

	lamp, ok := devices.devices["living_room_light"]
	if !ok {
		t.Fatal("default light missing")
	}
	if lamp.State["brightness"] != 50.0 {
		t.Errorf("default brightness = %v, want 50.0", lamp.State["brightness"])
	}
	thermo, ok := devices.devices["living_room_thermostat"]
	if !ok {
		t.Fatal("default thermostat missing")
	}
	if thermo.State["target_temperature"] != 22.0 || thermo.State["mode"] != "auto" {
		t.Errorf("thermostat defaults = %v", thermo.State)
	}
}

func TestService_ExportImportRoundTrip(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	if err := svc.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	doc, err := svc.Export(ctx)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if doc.Version != "1.0" {
		t.Errorf("Version = %q, want 1.0", doc.Version)
	}
	if len(doc.Rooms) != 5 || len(doc.Devices) != 5 {
		t.Fatalf("exported %d rooms / %d devices, want 5/5", len(doc.Rooms), len(doc.Devices))
	}

	// Import into an empty system recreates everything.
	fresh, _, _ := setupTestService(t)
	result, err := fresh.Import(ctx, doc)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if result.ImportedRooms != 5 || result.ImportedDevices != 5 {
		t.Errorf("imported %d rooms / %d devices, want 5/5", result.ImportedRooms, result.ImportedDevices)
	}
	if len(result.Errors) != 0 {
		t.Errorf("Errors = %v, want none", result.Errors)
	}
}

func TestService_ImportSkipsExistingAndCollectsErrors(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()
	if err := svc.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	roomID := "living_room"
	doc := &ExportDocument{
		Rooms: []room.Room{
			{ID: "living_room", Name: "Living Room"}, // exists, skipped
			{ID: "garage", Name: "Garage"},           // new
		},
		Devices: []device.Device{
			{ID: "living_room_light", Name: "Dupe", Type: device.TypeLight},   // exists, skipped
			{ID: "new_lamp", Name: "New Lamp", Type: device.TypeLight, RoomID: &roomID},
			{ID: "broken", Name: "", Type: device.TypeLight}, // invalid, collected
		},
	}

	result, err := svc.Import(ctx, doc)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if result.ImportedRooms != 1 {
		t.Errorf("ImportedRooms = %d, want 1", result.ImportedRooms)
	}
	if result.ImportedDevices != 1 {
		t.Errorf("ImportedDevices = %d, want 1", result.ImportedDevices)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "broken") {
		t.Errorf("Errors = %v, want one mentioning the broken device", result.Errors)
	}
}

func TestService_Validate(t *testing.T) {
	svc, _, rooms := setupTestService(t)
	ctx := context.Background()
	rooms.rooms["kitchen"] = &room.Room{ID: "kitchen", Name: "Kitchen"}

	kitchen := "kitchen"
	ghost := "ghost_room"

	tests := []struct {
		name         string
		device       *device.Device
		wantValid    bool
		wantErrs     int
		wantWarnings int
	}{
		{
			name:      "valid with room",
			device:    &device.Device{Name: "Lamp", Type: device.TypeLight, Category: device.CategoryLighting, RoomID: &kitchen},
			wantValid: true,
		},
		{
			name:         "missing name and type",
			device:       &device.Device{},
			wantValid:    false,
			wantErrs:     2,
			wantWarnings: 1,
		},
		{
			name:      "unknown type",
			device:    &device.Device{Name: "X", Type: "teleporter", RoomID: &kitchen},
			wantValid: false,
			wantErrs:  1,
		},
		{
			name:         "unknown room warns only",
			device:       &device.Device{Name: "Lamp", Type: device.TypeLight, RoomID: &ghost},
			wantValid:    true,
			wantWarnings: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := svc.Validate(ctx, tt.device)
			if result.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v (errors: %v)", result.Valid, tt.wantValid, result.Errors)
			}
			if len(result.Errors) != tt.wantErrs {
				t.Errorf("Errors = %v, want %d", result.Errors, tt.wantErrs)
			}
			if len(result.Warnings) != tt.wantWarnings {
				t.Errorf("Warnings = %v, want %d", result.Warnings, tt.wantWarnings)
			}
		})
	}
}

func TestService_Discover(t *testing.T) {
	svc, _, _ := setupTestService(t)

	found := svc.Discover(context.Background())
	if len(found) != 1 {
		t.Fatalf("Discover returned %d devices, want 1", len(found))
	}
	if found[0].DeviceType != "light" {
		t.Errorf("DeviceType = %q, want light", found[0].DeviceType)
	}
}
