// Package influxdb provides InfluxDB connectivity for the lab core service.
//
// It wraps the official influxdb-client-go v2 library with patterns for
// connection management, telemetry writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series data storage for:
//   - Instrument parameter readings
//   - Sweep step records
//   - Service telemetry
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "lab",
//	    Bucket: "readings",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Write a parameter reading
//	client.WriteParameterReading("psu.ch2", "voltage", "V", 3.3)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// This reduces network overhead for high-frequency telemetry data.
package influxdb
