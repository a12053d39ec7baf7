package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/openhearth/loragate/internal/device"
)

// AckEvent is the payload published to loragate/ack/{device_id} after each
// dispatched command. Soft distinguishes radio silence counted as delivery
// from an explicit acknowledgement line.
type AckEvent struct {
	CommandID    string    `json:"command_id"`
	DeviceID     string    `json:"device_id"`
	Command      string    `json:"command"`
	Value        string    `json:"value,omitempty"`
	Acknowledged bool      `json:"acknowledged"`
	Soft         bool      `json:"soft"`
	Timestamp    time.Time `json:"timestamp"`
}

// PublishDiscovery mirrors a device record to its retained discovery topic.
// Called once per device per discovery cycle; the retained flag means late
// subscribers still see the full inventory.
func (c *Client) PublishDiscovery(rec device.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: encoding device record: %w", ErrPublishFailed, err)
	}
	return c.PublishRetained(Topics{}.Discovery(rec.ID), payload)
}

// PublishAck mirrors a command outcome to the device's ack topic.
// Not retained; acks are events, not state.
func (c *Client) PublishAck(event AckEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: encoding ack event: %w", ErrPublishFailed, err)
	}
	return c.Publish(Topics{}.Ack(event.DeviceID), payload, byte(c.cfg.QoS), false)
}
