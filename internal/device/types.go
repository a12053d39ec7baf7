package device

import "time"

// Record represents one radio device as reported by discovery.
type Record struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`

	// Classification
	Type Type `json:"type"`

	// Battery is the last reported battery percentage.
	Battery int `json:"battery"`

	// LastSeen is when the device last answered a discovery broadcast.
	LastSeen time.Time `json:"last_seen"`

	// Attributes preserves discovery fields this version does not model.
	// Firmware that reports extra key:value pairs (RSSI, firmware revision)
	// round-trips through here untouched.
	Attributes map[string]string `json:"attributes,omitempty"`
}

// DeepCopy creates a complete independent copy of the Record.
// The Attributes map is cloned so modifications to the copy do not
// affect the original. This is essential for registry snapshot isolation.
func (r *Record) DeepCopy() *Record {
	if r == nil {
		return nil
	}

	cpy := *r // Shallow copy of value fields

	if r.Attributes != nil {
		cpy.Attributes = make(map[string]string, len(r.Attributes))
		for k, v := range r.Attributes {
			cpy.Attributes[k] = v
		}
	}

	return &cpy
}

// Type represents the specific kind of device the firmware reports.
// Values are the wire-format strings from the TYPE discovery field.
type Type string

// Device type constants.
const (
	TypeLightSwitch   Type = "LIGHT_SWITCH"
	TypeDimmerLight   Type = "DIMMER_LIGHT"
	TypeRGBStrip      Type = "RGB_STRIP"
	TypeFanController Type = "FAN_CONTROLLER"
	TypeOutletSwitch  Type = "OUTLET_SWITCH"
	TypeSensorNode    Type = "SENSOR_NODE"
)

// AllTypes returns all known device type values.
func AllTypes() []Type {
	return []Type{
		TypeLightSwitch, TypeDimmerLight, TypeRGBStrip,
		TypeFanController, TypeOutletSwitch, TypeSensorNode,
	}
}

// IsKnown reports whether the type is one of the recognised values.
// Unknown types are still stored and controllable; the enum describes
// what this version understands, not what the network may contain.
func (t Type) IsKnown() bool {
	switch t {
	case TypeLightSwitch, TypeDimmerLight, TypeRGBStrip,
		TypeFanController, TypeOutletSwitch, TypeSensorNode:
		return true
	default:
		return false
	}
}

// Capability represents what a device can do.
type Capability string

// Capability constants.
const (
	CapOnOff    Capability = "on_off"
	CapDim      Capability = "dim"
	CapColorRGB Capability = "color_rgb"
	CapSpeed    Capability = "speed"
	CapBattery  Capability = "battery_status"
	CapSense    Capability = "sense"
)

// Capabilities returns the advisory capability set for the type.
//
// Advisory means exactly that: nothing in the command path consults this
// set. The firmware is the authority on what a device accepts, and a
// command sent to a device that cannot honour it is the firmware's to
// reject. These sets exist for dashboards that want to render sensible
// controls.
func (t Type) Capabilities() []Capability {
	switch t {
	case TypeLightSwitch:
		return []Capability{CapOnOff, CapBattery}
	case TypeDimmerLight:
		return []Capability{CapOnOff, CapDim, CapBattery}
	case TypeRGBStrip:
		return []Capability{CapOnOff, CapDim, CapColorRGB, CapBattery}
	case TypeFanController:
		return []Capability{CapOnOff, CapSpeed, CapBattery}
	case TypeOutletSwitch:
		return []Capability{CapOnOff, CapBattery}
	case TypeSensorNode:
		return []Capability{CapSense, CapBattery}
	default:
		return nil
	}
}
