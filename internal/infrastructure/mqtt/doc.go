// Package mqtt provides MQTT client connectivity for the lab core service.
//
// This package manages:
//   - Connection to Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The service uses MQTT as its external message bus: every parameter
// cache change is published retained to a state topic, and external
// clients can drive settable parameters by publishing to command topics.
// The broker (Mosquitto) decouples lab dashboards and scripts from the
// service itself.
//
//	Lab Core ↔ MQTT Broker ↔ Dashboards / Measurement Scripts
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s with jitter
//   - Message throughput: Broker-limited (typically 10K+ msg/sec)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all parameter state updates
//	err = client.Subscribe(mqtt.Topics{}.AllParameterStates(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a set command
//	topic := mqtt.Topics{}.ParameterCommand("psu.ch1", "voltage")
//	client.Publish(topic, []byte(`{"value":3.3}`), 1, false)
package mqtt
