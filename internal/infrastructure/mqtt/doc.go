// Package mqtt provides MQTT connectivity for publishing Switchboard events.
//
// This package manages:
//   - Connection to an MQTT broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Switchboard publishes device state and host connectivity events so other
// systems (dashboards, recorders, automations) can observe the hub without
// polling its API. The hub is publish-only; it never subscribes.
//
//	Switchboard Hub → MQTT Broker → Subscribers
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.DeviceState("hall_light")
//	client.Publish(topic, payload, 1, true)
package mqtt
