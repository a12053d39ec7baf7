// Package device provides the in-memory device registry for the LoRa gateway.
//
// The registry is the catalogue of battery-powered radio devices that have
// answered a discovery broadcast. It is populated exclusively by discovery
// and queried by the gateway controller, the REST API, the WebSocket
// snapshot broadcaster, and the MQTT mirror.
//
// # Key Types
//
//   - Record: one device as reported over the wire (ID, type, name, battery)
//   - Type: the device classification the firmware reports (LIGHT_SWITCH, ...)
//   - Registry: thread-safe map of records keyed by device ID
//
// # Semantics
//
// Upsert replaces records wholesale; the most recent discovery report wins.
// Lookups by name are case-insensitive. List returns an isolated deep-copied
// snapshot, so readers racing a discovery cycle see either the old record or
// the new one, never a blend.
//
// Capability sets derived from the device type are advisory metadata for
// dashboards. They are never used to gate commands.
//
// # Thread Safety
//
// The Registry is safe for concurrent use. All operations are protected by
// a read-write mutex and all returned records are deep copies.
package device
