package lora

import (
	"context"
	"fmt"
	"strconv"
)

// Command names understood by the device firmware.
const (
	CommandOn         = "ON"
	CommandOff        = "OFF"
	CommandBrightness = "BRIGHTNESS"
	CommandColor      = "COLOR"
	CommandSpeed      = "SPEED"
)

// LightsOn switches the device on.
func (c *Controller) LightsOn(ctx context.Context, deviceID string) (bool, error) {
	return c.SendCommand(ctx, deviceID, CommandOn, "")
}

// LightsOff switches the device off.
func (c *Controller) LightsOff(ctx context.Context, deviceID string) (bool, error) {
	return c.SendCommand(ctx, deviceID, CommandOff, "")
}

// SetBrightness sets a dimmer level.
//
// The expected range is 0-100 but the value is forwarded as given; the
// firmware clamps or rejects out-of-range levels itself.
func (c *Controller) SetBrightness(ctx context.Context, deviceID string, level int) (bool, error) {
	return c.SendCommand(ctx, deviceID, CommandBrightness, strconv.Itoa(level))
}

// SetRGBColor sets an RGB strip colour. The channels travel as a single
// comma-joined value: CMD:<id>:COLOR:<r>,<g>,<b>.
func (c *Controller) SetRGBColor(ctx context.Context, deviceID string, r, g, b int) (bool, error) {
	value := fmt.Sprintf("%d,%d,%d", r, g, b)
	return c.SendCommand(ctx, deviceID, CommandColor, value)
}

// SetFanSpeed sets a fan controller speed.
func (c *Controller) SetFanSpeed(ctx context.Context, deviceID string, speed int) (bool, error) {
	return c.SendCommand(ctx, deviceID, CommandSpeed, strconv.Itoa(speed))
}
