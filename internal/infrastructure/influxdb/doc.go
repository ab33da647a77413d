// Package influxdb mirrors sensor telemetry into InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with HomeDeck
// patterns for connection management, batched writes, and health
// monitoring. SQLite remains the source of truth for readings; the
// InfluxDB mirror exists for long-range dashboards (Grafana) without
// burdening the primary database.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	sensorService.SetMirror(client)
//
// The client satisfies sensor.Mirror, so every stored reading is
// forwarded automatically once attached.
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// Writes are non-blocking and batched according to config.yaml settings
// (batch_size, flush_interval); batch errors surface via SetOnError.
package influxdb
