// Package mqtt provides the broker connection used by the gpioled bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS acknowledgment
//   - Subscriptions that are replayed after a reconnect, with an optional
//     OnReconnect hook for republishing state
//   - Last Will and Testament so a crash shows as offline on gpioled/system/status
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS) for brokers off the local host
//   - Anyone allowed to publish on gpioled/command/# can drive the pin
//
// # Usage
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT, logger)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.Command("led"), 1, handler)
//	err = client.PublishRetained(mqtt.Topics{}.State("led"), payload)
package mqtt
