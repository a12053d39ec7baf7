package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteBattery records a device's reported battery level.
//
// Called once per device per discovery cycle, when the device's discovery
// response carries a battery percentage. The write is non-blocking; data is
// batched and sent asynchronously.
//
// Parameters:
//   - deviceID: Device identifier (e.g., "001")
//   - deviceType: Wire type string (e.g., "SENSOR_NODE"), tagged for grouping
//   - percent: Battery charge percentage as reported
//
// Example:
//
//	client.WriteBattery("003", "SENSOR_NODE", 87)
func (c *Client) WriteBattery(deviceID, deviceType string, percent int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"battery",
		map[string]string{
			"device_id":   deviceID,
			"device_type": deviceType,
		},
		map[string]interface{}{
			"percent": percent,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteDiscoveryCycle records summary stats for one discovery cycle.
//
// Parameters:
//   - devicesFound: Number of devices that answered the broadcast
//   - duration: How long the discovery window ran
func (c *Client) WriteDiscoveryCycle(devicesFound int, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"discovery",
		map[string]string{},
		map[string]interface{}{
			"devices_found": devicesFound,
			"duration_ms":   duration.Milliseconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
