package lora

import "errors"

// Domain errors for the LoRa bridge package.
var (
	// ErrConnectionFailed is returned when the serial port cannot be opened.
	ErrConnectionFailed = errors.New("lora: connection failed")

	// ErrNotConnected is returned when an operation requires an open
	// transport but the controller is disconnected.
	ErrNotConnected = errors.New("lora: not connected")

	// ErrWriteFailed is returned when writing a line to the serial port fails.
	ErrWriteFailed = errors.New("lora: write failed")

	// ErrUnknownDevice is returned when a command targets a device ID that
	// has not been discovered. The check happens before any serial I/O.
	ErrUnknownDevice = errors.New("lora: unknown device")

	// ErrMissingDeviceID is returned when a discovery response carries no ID
	// field. Such lines are logged and dropped, never fatal.
	ErrMissingDeviceID = errors.New("lora: discovery response missing device id")

	// ErrNotDiscovery is returned when a line without the DEVICE: prefix is
	// given to the discovery parser.
	ErrNotDiscovery = errors.New("lora: not a discovery response")

	// ErrNotCommand is returned when a line without the CMD: prefix is given
	// to the command parser.
	ErrNotCommand = errors.New("lora: not a command")

	// ErrInvalidState is returned when an operation is attempted from a
	// controller state that does not permit it.
	ErrInvalidState = errors.New("lora: invalid state for operation")

	// ErrClosed is returned when the transport has been closed.
	ErrClosed = errors.New("lora: transport closed")
)
