package provision

import (
	"github.com/jmorrell/homedeck/internal/device"
	"github.com/jmorrell/homedeck/internal/room"
)

// defaultRooms is the factory room layout.
func defaultRooms() []room.Room {
	return []room.Room{
		{ID: "living_room", Name: "Living Room", Icon: "living"},
		{ID: "bedroom", Name: "Bedroom", Icon: "bed"},
		{ID: "bathroom", Name: "Bathroom", Icon: "bathroom"},
		{ID: "kitchen", Name: "Kitchen", Icon: "kitchen"},
		{ID: "outdoor", Name: "Outdoor", Icon: "outdoor"},
	}
}

// defaultDevices is the factory device set, one per supported type.
// Initial states come from the device templates so factory devices and
// user-created ones start identically.
func defaultDevices() []device.Device {
	templates := map[device.DeviceType]device.Template{}
	for _, t := range device.Templates() {
		templates[t.Type] = t
	}

	placements := []struct {
		id     string
		name   string
		kind   device.DeviceType
		roomID string
		icon   string
	}{
		{"living_room_light", "Living Room Light", device.TypeLight, "living_room", "lightbulb"},
		{"living_room_thermostat", "Living Room Thermostat", device.TypeThermostat, "living_room", "thermostat"},
		{"outdoor_jacuzzi", "Outdoor Jacuzzi", device.TypeJacuzzi, "outdoor", "hot_tub"},
		{"house_powerwall", "House Powerwall", device.TypePowerwall, "outdoor", "battery_charging_full"},
		{"house_recuperation", "House Recuperation", device.TypeRecuperation, "living_room", "air"},
	}

	devices := make([]device.Device, 0, len(placements))
	for _, p := range placements {
		roomID := p.roomID
		d := device.Device{
			ID:       p.id,
			Name:     p.name,
			Type:     p.kind,
			Category: device.DefaultCategory(p.kind),
			Icon:     p.icon,
			RoomID:   &roomID,
			Enabled:  true,
		}
		if t, ok := templates[p.kind]; ok {
			d.State = device.State{}
			for k, v := range t.InitialState {
				d.State[k] = v
			}
		}
		devices = append(devices, d)
	}
	return devices
}
