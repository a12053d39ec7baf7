package lora

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/openhearth/loragate/internal/device"
)

// Wire protocol markers. The firmware defines these; they are not
// configurable.
const (
	// DiscoveryBroadcast is the line that asks every device to report in.
	DiscoveryBroadcast = "DISCOVER_ALL"

	// discoveryPrefix marks a device's discovery response.
	discoveryPrefix = "DEVICE:"

	// commandPrefix marks a gateway-to-device command.
	commandPrefix = "CMD:"

	// ackMarker is the substring that classifies a reply as an
	// acknowledgment. Firmware replies vary ("001:OK:ACK", "ACK:001") so
	// classification is a substring test, not a format.
	ackMarker = "ACK"
)

// Discovery field keys recognised by the parser. Anything else a device
// reports lands in Record.Attributes.
const (
	fieldID      = "ID"
	fieldType    = "TYPE"
	fieldName    = "NAME"
	fieldBattery = "BATTERY"
)

// Command carries a parsed CMD: line.
type Command struct {
	DeviceID string
	Name     string
	Value    string
}

// IsDiscovery reports whether the line is a device discovery response.
func IsDiscovery(line string) bool {
	return strings.HasPrefix(line, discoveryPrefix)
}

// IsAck reports whether the line acknowledges a command.
//
// Any line containing the ACK substring counts. Callers must exclude
// discovery responses themselves; a DEVICE: line is never an acknowledgment
// even if a device name happens to contain "ACK".
func IsAck(line string) bool {
	return strings.Contains(line, ackMarker)
}

// ParseDiscovery decodes a DEVICE: response into a device record.
//
// The payload is comma-separated segments, each split once on its first
// colon into key and value. Segments without a colon are skipped as
// malformed fields; they never fail the line. A payload with no ID field
// returns ErrMissingDeviceID and the line is discarded by the caller.
//
// Recognised keys (ID, TYPE, NAME, BATTERY) populate the typed fields.
// Every other key is preserved verbatim in Attributes, so newer firmware
// can report fields this version does not know about.
//
// LastSeen is left zero; the caller stamps it at upsert time.
func ParseDiscovery(line string) (*device.Record, error) {
	if !IsDiscovery(line) {
		return nil, fmt.Errorf("%w: %q", ErrNotDiscovery, line)
	}

	payload := strings.TrimPrefix(line, discoveryPrefix)
	rec := &device.Record{}

	for _, segment := range strings.Split(payload, ",") {
		key, value, ok := strings.Cut(segment, ":")
		if !ok {
			// Malformed field, not a malformed line.
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case fieldID:
			rec.ID = value
		case fieldType:
			rec.Type = device.Type(value)
		case fieldName:
			rec.Name = value
		case fieldBattery:
			pct, err := strconv.Atoi(value)
			if err != nil {
				// Keep the raw value rather than inventing a number.
				if rec.Attributes == nil {
					rec.Attributes = make(map[string]string)
				}
				rec.Attributes[fieldBattery] = value
				continue
			}
			rec.Battery = pct
		default:
			if rec.Attributes == nil {
				rec.Attributes = make(map[string]string)
			}
			rec.Attributes[key] = value
		}
	}

	if rec.ID == "" {
		return nil, fmt.Errorf("%w: %q", ErrMissingDeviceID, line)
	}

	return rec, nil
}

// BuildCommand encodes a command line for the given device.
//
// With a value:    CMD:<id>:<command>:<value>
// Without a value: CMD:<id>:<command>
func BuildCommand(deviceID, command, value string) string {
	if value == "" {
		return commandPrefix + deviceID + ":" + command
	}
	return commandPrefix + deviceID + ":" + command + ":" + value
}

// ParseCommand decodes a CMD: line. It is the inverse of BuildCommand:
// parsing a built command yields the original parts.
func ParseCommand(line string) (Command, error) {
	if !strings.HasPrefix(line, commandPrefix) {
		return Command{}, fmt.Errorf("%w: %q", ErrNotCommand, line)
	}

	payload := strings.TrimPrefix(line, commandPrefix)
	parts := strings.SplitN(payload, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Command{}, fmt.Errorf("%w: %q", ErrNotCommand, line)
	}

	cmd := Command{
		DeviceID: parts[0],
		Name:     parts[1],
	}
	if len(parts) == 3 {
		cmd.Value = parts[2]
	}
	return cmd, nil
}
