package mqtt

import "fmt"

// TopicPrefix is the base for all gateway topics.
//
// The gateway publishes under a flat scheme:
//
//	loragate/status                  gateway online/offline (retained)
//	loragate/discovery/{device_id}   last discovery record per device (retained)
//	loragate/ack/{device_id}         command acknowledgement outcomes
const TopicPrefix = "loragate"

// Topics provides builders for gateway MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
type Topics struct{}

// Status returns the gateway status topic. Retained, and also used as the
// Last Will topic so subscribers see "offline" after an unclean disconnect.
//
// Example: loragate/status
func (Topics) Status() string {
	return fmt.Sprintf("%s/status", TopicPrefix)
}

// Discovery returns the retained discovery topic for a device. The gateway
// publishes the device record here each time the device answers a discovery
// broadcast, so new subscribers immediately see the last known inventory.
//
// Example: loragate/discovery/001
func (Topics) Discovery(deviceID string) string {
	return fmt.Sprintf("%s/discovery/%s", TopicPrefix, deviceID)
}

// Ack returns the acknowledgement topic for a device. One message per
// dispatched command, not retained.
//
// Example: loragate/ack/001
func (Topics) Ack(deviceID string) string {
	return fmt.Sprintf("%s/ack/%s", TopicPrefix, deviceID)
}

// AllDiscovery returns a pattern matching every device's discovery topic.
//
// Pattern: loragate/discovery/+
func (Topics) AllDiscovery() string {
	return fmt.Sprintf("%s/discovery/+", TopicPrefix)
}

// AllAcks returns a pattern matching every device's acknowledgement topic.
//
// Pattern: loragate/ack/+
func (Topics) AllAcks() string {
	return fmt.Sprintf("%s/ack/+", TopicPrefix)
}

// AllTopics returns a pattern matching all gateway topics.
// Use with caution, this receives ALL traffic.
//
// Pattern: loragate/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
