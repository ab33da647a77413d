package device

import (
	"fmt"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength = 100

	// Size limits for JSON fields to prevent DoS via memory exhaustion.
	maxConfigKeys = 50
	maxStateKeys  = 50
)

// PropertyKind describes how a state property is validated.
type PropertyKind string

// Property kinds.
const (
	KindBool   PropertyKind = "bool"
	KindNumber PropertyKind = "number"
	KindEnum   PropertyKind = "enum"
)

// PropertySpec declares a single legal state property for a device type.
type PropertySpec struct {
	Kind PropertyKind `json:"kind"`

	// Min and Max bound numeric properties. Values outside the range are
	// clamped, not rejected.
	Min float64 `json:"min,omitempty"`
	Max float64 `json:"max,omitempty"`

	// Step is advisory for UI sliders; it is not enforced.
	Step float64 `json:"step,omitempty"`

	// Options enumerate legal values for enum properties.
	Options []string `json:"options,omitempty"`
}

// propertySpecs declares the legal state properties per device type.
// TypeCustom is absent on purpose: custom devices accept any state.
var propertySpecs = map[DeviceType]map[string]PropertySpec{
	TypeLight: {
		"power":      {Kind: KindBool},
		"brightness": {Kind: KindNumber, Min: 0, Max: 100, Step: 5},
	},
	TypeThermostat: {
		"power":               {Kind: KindBool},
		"target_temperature":  {Kind: KindNumber, Min: 10, Max: 35, Step: 0.5},
		"current_temperature": {Kind: KindNumber, Min: -50, Max: 100},
		"mode":                {Kind: KindEnum, Options: []string{"heat", "cool", "auto", "off"}},
	},
	TypeJacuzzi: {
		"power":       {Kind: KindBool},
		"temperature": {Kind: KindNumber, Min: 20, Max: 40, Step: 1},
		"timer":       {Kind: KindNumber, Min: 0, Max: 120, Step: 15},
	},
	TypePowerwall: {
		"power":         {Kind: KindBool},
		"charging_mode": {Kind: KindEnum, Options: []string{"auto", "charge", "discharge", "standby"}},
		"battery_level": {Kind: KindNumber, Min: 0, Max: 100},
	},
	TypeRecuperation: {
		"power":     {Kind: KindBool},
		"fan_speed": {Kind: KindNumber, Min: 1, Max: 5, Step: 1},
		"mode":      {Kind: KindEnum, Options: []string{"auto", "manual", "eco", "boost"}},
	},
}

// PropertySpecs returns the declared state properties for a device type.
// Returns nil for TypeCustom and unknown types.
func PropertySpecs(t DeviceType) map[string]PropertySpec {
	return propertySpecs[t]
}

// validDeviceTypes and validCategories are pre-computed for O(1) lookups.
var (
	validDeviceTypes map[DeviceType]struct{}
	validCategories  map[Category]struct{}
)

func init() {
	validDeviceTypes = make(map[DeviceType]struct{}, len(AllDeviceTypes()))
	for _, t := range AllDeviceTypes() {
		validDeviceTypes[t] = struct{}{}
	}

	validCategories = make(map[Category]struct{}, len(AllCategories()))
	for _, c := range AllCategories() {
		validCategories[c] = struct{}{}
	}
}

// ValidateDevice performs validation on a device record.
// Returns an error describing the first validation failure found.
func ValidateDevice(d *Device) error {
	if d == nil {
		return ErrInvalidDevice
	}

	if d.Name == "" || len(d.Name) > maxNameLength {
		return fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidName, maxNameLength)
	}

	if _, ok := validDeviceTypes[d.Type]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidDeviceType, d.Type)
	}

	if d.Category != "" {
		if _, ok := validCategories[d.Category]; !ok {
			return fmt.Errorf("%w: unknown category %q", ErrInvalidDevice, d.Category)
		}
	}

	if len(d.Config) > maxConfigKeys {
		return fmt.Errorf("%w: config exceeds %d keys", ErrInvalidDevice, maxConfigKeys)
	}
	if len(d.State) > maxStateKeys {
		return fmt.Errorf("%w: state exceeds %d keys", ErrInvalidDevice, maxStateKeys)
	}

	if d.State != nil {
		if _, err := ValidateStatePatch(d.Type, d.State); err != nil {
			return err
		}
	}

	return nil
}

// ValidateStatePatch validates a partial state patch against the device
// type's property specs and returns the normalised patch.
//
// Numeric values outside the declared range are clamped to the nearest
// bound; the clamped value is returned, making the stored state
// authoritative over whatever the caller requested. Enum and bool
// violations are rejected outright.
//
// Custom devices accept any patch unchanged.
//
// Parameters:
//   - t: Device type whose specs apply
//   - patch: Partial state mapping property -> requested value
//
// Returns:
//   - State: Normalised patch safe to merge into stored state
//   - error: ErrUnknownProperty or ErrInvalidState (wrapped) on violation
func ValidateStatePatch(t DeviceType, patch State) (State, error) {
	if len(patch) > maxStateKeys {
		return nil, fmt.Errorf("%w: patch exceeds %d keys", ErrInvalidState, maxStateKeys)
	}

	specs, ok := propertySpecs[t]
	if !ok {
		// Custom or unrecognised types carry free-form state.
		return deepCopyMap(patch), nil
	}

	normalised := make(State, len(patch))
	for prop, value := range patch {
		spec, ok := specs[prop]
		if !ok {
			return nil, fmt.Errorf("%w: %q not valid for %s", ErrUnknownProperty, prop, t)
		}

		v, err := normaliseValue(spec, prop, value)
		if err != nil {
			return nil, err
		}
		normalised[prop] = v
	}

	return normalised, nil
}

// normaliseValue coerces and bounds a single property value.
func normaliseValue(spec PropertySpec, prop string, value any) (any, error) {
	switch spec.Kind {
	case KindBool:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a boolean", ErrInvalidState, prop)
		}
		return b, nil

	case KindNumber:
		f, ok := toFloat(value)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a number", ErrInvalidState, prop)
		}
		if f < spec.Min {
			f = spec.Min
		}
		if f > spec.Max {
			f = spec.Max
		}
		return f, nil

	case KindEnum:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a string", ErrInvalidState, prop)
		}
		for _, opt := range spec.Options {
			if s == opt {
				return s, nil
			}
		}
		return nil, fmt.Errorf("%w: %s must be one of %v", ErrInvalidState, prop, spec.Options)

	default:
		return nil, fmt.Errorf("%w: %s has unknown kind", ErrInvalidState, prop)
	}
}

// toFloat converts the numeric types JSON decoding and Go callers produce.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// GenerateID returns a new unique device identifier.
func GenerateID() string {
	return uuid.NewString()
}
