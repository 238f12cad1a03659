// Package monitor connects the instrument object model to the outside
// world.
//
// Every parameter cache change (from a get, a set, or a snapshot refresh)
// bubbles to the owning root instrument; the monitor subscribes there and
// fans each update out:
//
//	Parameter cache change
//	        │
//	        ▼
//	   Monitor.handle
//	        ├── MQTT retained state topic (labcore/state/...)
//	        ├── InfluxDB parameter_readings (numeric values only)
//	        └── WebSocket broadcast to connected UI clients
//
// The monitor also binds the inbound direction: BindCommands subscribes
// to the MQTT command topics and routes set requests through the registry
// to the target parameter, so dashboards and scripts can drive settable
// parameters without touching the HTTP API.
//
// All sinks are optional interfaces; a nil sink is skipped. Fan-out
// happens on the goroutine that performed the instrument operation, so
// sinks must not block (the MQTT and InfluxDB clients both buffer).
package monitor
