// Package mqtt provides the gateway's optional MQTT state mirror.
//
// This package manages:
//   - Connection to a Mosquitto broker with auto-reconnect
//   - Retained discovery records per device (loragate/discovery/{id})
//   - Command acknowledgement events (loragate/ack/{id})
//   - Last Will and Testament (LWT) on loragate/status for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// MQTT is an outbound mirror, not a control plane. The serial protocol path
// owns device state; this package republishes discovery results and command
// outcomes so dashboards and home automation hubs can follow along without
// touching the radio. The mirror is disabled by default (mqtt.enabled) and
// every publish failure is logged and dropped rather than retried on the
// protocol path.
//
//	Serial radio ↔ Gateway → MQTT Broker → Dashboards / hubs
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Mirror a discovery result
//	client.PublishDiscovery(rec)
//
//	// Mirror a command outcome
//	client.PublishAck(mqtt.AckEvent{
//	    CommandID:    id,
//	    DeviceID:     "001",
//	    Command:      "ON",
//	    Acknowledged: true,
//	})
package mqtt
