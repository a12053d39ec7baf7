// Package lora implements the serial bridge to battery-powered LoRa devices.
//
// The bridge talks a fixed line-oriented text protocol over a single serial
// port to an ESP32 radio module, which forwards each line over the air:
//
//	gateway → devices   DISCOVER_ALL
//	device  → gateway   DEVICE:ID:001,TYPE:LIGHT_SWITCH,NAME:Living Room,BATTERY:87
//	gateway → device    CMD:001:ON            CMD:003:COLOR:255,0,64
//	device  → gateway   001:OK:ACK
//
// # Architecture
//
//	┌──────────────┐        ┌──────────────┐         ┌─────────────────┐
//	│  Controller  │───────▶│   Transport  │ serial  │  ESP32 radio    │  LoRa
//	│ (gateway.go) │        │ (serial.go)  │◄───────►│  module         │◄──────▶ devices
//	└──────┬───────┘        └──────────────┘         └─────────────────┘
//	       │
//	       ▼
//	┌──────────────┐
//	│   Registry   │  in-memory catalogue, populated by discovery
//	└──────────────┘
//
// # Key Responsibilities
//
//   - Open and own the serial transport (go.bug.st/serial)
//   - Broadcast discovery and collect DEVICE: responses for a fixed window
//   - Encode commands and classify acknowledgment replies
//   - Serialise protocol exchanges over the single half-duplex channel
//   - Report command dispatches to an optional audit recorder
//   - Report discovered devices to an optional observer (MQTT, telemetry)
//
// # Acknowledgment Semantics
//
// Radio devices sleep aggressively to save battery, so a missing reply is
// normal, not an error. After a command the controller waits a short grace
// period and polls once: any non-discovery line containing "ACK" confirms
// the command, any other line denies it, and silence counts as soft success.
// Callers that need certainty must confirm through a later discovery cycle.
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
// Concurrent commands queue on an internal mutex; the wire never interleaves
// two exchanges.
package lora
