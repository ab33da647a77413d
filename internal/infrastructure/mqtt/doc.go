// Package mqtt wraps paho.mqtt.golang for the HomeDeck sensor fleet.
//
// ESP32 sensor firmware publishes telemetry and status over MQTT as an
// alternative to the HTTP ingest endpoint. This package provides:
//
//   - Connection management with automatic reconnection
//   - Last Will and Testament for server offline detection
//   - Subscription tracking with restoration on reconnect
//   - Panic recovery in message handlers
//   - Topic builders for the homedeck/ hierarchy
//
// Topic hierarchy:
//
//	homedeck/sensors/{device_id}/data          telemetry readings from a sensor
//	homedeck/sensors/{device_id}/status        sensor registration and heartbeat
//	homedeck/sensors/{device_id}/ota/progress  firmware update progress callbacks
//	homedeck/system/status                     server online/offline (retained, LWT)
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	ingest := mqtt.NewIngest(client, sensorService, otaManager)
//	if err := ingest.Start(ctx); err != nil {
//	    return err
//	}
package mqtt
