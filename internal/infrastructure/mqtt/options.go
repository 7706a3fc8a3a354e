package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gpioled/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultOpTimeout      = 5 * time.Second
	defaultKeepAlive      = 60 * time.Second
	defaultMaxReconnect   = 60 * time.Second

	disconnectQuiesceMs = 1000

	maxQoS = 2

	tlsMinVersion = tls.VersionTLS12
)

// Values of the status field on the system status topic.
const (
	statusOnline  = "online"
	statusOffline = "offline"
)

// buildClientOptions maps the config section onto paho options. The
// session is clean: commands sent while the bridge is offline are lost
// rather than replayed late.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	maxReconnect := time.Duration(cfg.Reconnect.MaxDelay) * time.Second
	if maxReconnect <= 0 {
		maxReconnect = defaultMaxReconnect
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetMaxReconnectInterval(maxReconnect).
		SetConnectTimeout(defaultConnectTimeout).
		SetKeepAlive(defaultKeepAlive).
		SetOrderMatters(false)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username).SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}
	return opts
}

// statusPayload is the retained body of the system status topic.
type statusPayload struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func encodeStatus(status, clientID, reason string) []byte {
	b, _ := json.Marshal(statusPayload{ //nolint:errcheck // plain strings always marshal
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return b
}

// configureLWT has the broker mark the client offline when it vanishes
// without a clean disconnect.
func configureLWT(opts *pahomqtt.ClientOptions, clientID string) {
	opts.SetBinaryWill(Topics{}.SystemStatus(), encodeStatus(statusOffline, clientID, "unexpected_disconnect"), 1, true)
}

// publishStatus publishes a retained status without waiting.
func (c *Client) publishStatus(status, reason string) pahomqtt.Token {
	return c.paho.Publish(Topics{}.SystemStatus(), c.QoS(), true, encodeStatus(status, c.cfg.Broker.ClientID, reason))
}
