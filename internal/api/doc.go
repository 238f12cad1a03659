// Package api implements the HTTP REST API and WebSocket server for Lab Core.
//
// This package provides:
//   - REST endpoints for instrument discovery, parameter reads and writes,
//     and snapshot capture/history
//   - WebSocket hub for real-time parameter update broadcasts
//   - JWT authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS)
//   - TLS support for production deployments
//
// # Architecture
//
// The API server sits between user interfaces (dashboards, measurement
// scripts, web admin) and the instrument registry. Parameter writes go
// straight through the registry to the instrument session; parameter
// updates flow back through the monitor, which broadcasts them to
// WebSocket clients and publishes them on MQTT.
//
// # Security
//
// Authentication uses JWT tokens (dev credentials until a user store
// lands). WebSocket connections use single-use tickets to prevent token
// leakage in URLs.
//
// # Graceful Degradation
//
// The server operates without a snapshot store — parameter reads, writes,
// and live snapshots work, only snapshot history endpoints are disabled.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple
// goroutines.
package api
