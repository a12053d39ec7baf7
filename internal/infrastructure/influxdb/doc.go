// Package influxdb provides time-series storage for battery telemetry.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched writes, and health monitoring.
//
// # Purpose
//
// Battery-powered nodes report charge level in every discovery response.
// This package records those readings so operators can chart battery drain
// over weeks and replace cells before a device goes quiet. It also records
// per-cycle discovery stats.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteBattery("003", "SENSOR_NODE", 87)
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via the
// SetOnError callback. Connection and health check errors are returned
// directly. Telemetry is best-effort; a write failure never disturbs the
// serial protocol path.
package influxdb
