package mqttclient

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

type Client struct {
	conn      mqtt.Client
	connected atomic.Bool
	log       zerolog.Logger
}

type Options struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	Log       zerolog.Logger
}

func Connect(opts Options) (*Client, error) {
	c := &Client{log: opts.Log}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}

	c.conn = mqtt.NewClient(clientOpts)
	token := c.conn.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Client) onConnect(_ mqtt.Client) {
	c.connected.Store(true)
	c.log.Info().Msg("mqtt connected")
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	c.connected.Store(false)
	c.log.Warn().Err(err).Msg("mqtt connection lost, will auto-reconnect")
}

// Publish sends payload to topic at QoS 0 and waits briefly for the hand-off.
func (c *Client) Publish(topic string, payload []byte) error {
	token := c.conn.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return errors.New("mqtt publish timed out")
	}
	return token.Error()
}

func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

func (c *Client) Close() {
	c.log.Info().Msg("disconnecting mqtt client")
	c.conn.Disconnect(1000)
}

// Topic joins a prefix and path elements with '/', dropping empty parts
// and stray slashes.
func Topic(prefix string, parts ...string) string {
	var elems []string
	for _, p := range append([]string{prefix}, parts...) {
		p = strings.Trim(strings.TrimSpace(p), "/")
		if p != "" {
			elems = append(elems, p)
		}
	}
	return strings.Join(elems, "/")
}
