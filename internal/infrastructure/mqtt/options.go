package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/musalce/musalce-server/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	// defaultPublishTimeout also bounds subscribe and unsubscribe acks.
	defaultPublishTimeout = 5 * time.Second
	// defaultDisconnectQuiesce is in milliseconds, as paho expects.
	defaultDisconnectQuiesce = 1000
	defaultKeepAlive         = 60 * time.Second

	maxQoS        = 2
	tlsMinVersion = tls.VersionTLS12
)

// buildClientOptions maps the mqtt config section onto paho options. The
// session is clean; routing state lives in retained messages instead.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetConnectTimeout(defaultConnectTimeout).
		SetKeepAlive(defaultKeepAlive)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
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
	Version   string `json:"version,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (p statusPayload) String() string {
	p.Timestamp = time.Now().UTC().Format(time.RFC3339)
	data, err := json.Marshal(p)
	if err != nil {
		return `{"status":"` + p.Status + `"}`
	}
	return string(data)
}

// configureLWT has the broker mark the server offline, retained, when the
// connection drops without a Close.
func configureLWT(opts *pahomqtt.ClientOptions, topics Topics, clientID string, qos byte) {
	will := statusPayload{Status: "offline", ClientID: clientID, Reason: "unexpected_disconnect"}
	opts.SetWill(topics.SystemStatus(), will.String(), qos, true)
}

func buildOnlinePayload(clientID, version string) string {
	return statusPayload{Status: "online", ClientID: clientID, Version: version}.String()
}

func buildOfflinePayload(clientID string) string {
	return statusPayload{Status: "offline", ClientID: clientID, Reason: "graceful_shutdown"}.String()
}
