// Package bridge publishes measurements and gate state over MQTT and
// accepts remote gate and scale commands.
//
// Topic layout under the per-device prefix:
//
//	weight      latest measurement, published per reading
//	gate        discrete gate state, retained
//	gate/set    inbound gate command, {"r": ratio} or {"g": state}
//	scale/zero  inbound zero request, payload ignored
package bridge

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/denisbrodbeck/machineid"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"github.com/weighworks/gatescale/pkg/gate"
	"github.com/weighworks/gatescale/pkg/scale"
)

// Bridge connects the scale and gate controllers to an MQTT broker.
type Bridge struct {
	BrokerURL string
	// DeviceID scopes the topic prefix. Empty derives a stable id from
	// the machine identity.
	DeviceID string

	Scale *scale.Controller
	Gate  *gate.Controller

	client paho.Client
	prefix string
}

// connectTimeout bounds the initial broker handshake.
const connectTimeout = 10 * time.Second

// commandTimeout bounds the gate motion triggered by a remote command.
const commandTimeout = 30 * time.Second

// ClientOptionsFromURL builds paho options from a broker URL of the
// form [mqtt|tcp|ssl|ws]://[user:pass@]host:port[/topic/prefix].
// The path overrides the default per-device topic prefix.
func ClientOptionsFromURL(brokerURL string) (*paho.ClientOptions, string, error) {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return nil, "", err
	}
	var server string
	if u.Scheme == "" || u.Scheme == "mqtt" {
		server = "tcp"
	} else {
		server = u.Scheme
	}
	server += "://" + u.Host

	topicPrefix := strings.TrimPrefix(u.Path, "/")
	if topicPrefix != "" && !strings.HasSuffix(topicPrefix, "/") {
		topicPrefix += "/"
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(server).
		SetAutoReconnect(true).
		SetCleanSession(true)
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			opts.SetPassword(pwd)
		}
	}
	if clientID := u.Query().Get("client-id"); clientID != "" {
		opts.SetClientID(clientID)
	}
	return opts, topicPrefix, nil
}

// deviceID returns the configured id, or one derived from the machine
// identity.
func (b *Bridge) deviceID() string {
	if b.DeviceID != "" {
		return b.DeviceID
	}
	id, err := machineid.ProtectedID("gatescale")
	if err != nil {
		glog.Warningf("machine id unavailable (%v), using default", err)
		return "default"
	}
	// The full HMAC is unwieldy in topic names.
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

// Name implements framework.Named.
func (b *Bridge) Name() string { return "mqtt" }

// Run connects to the broker and bridges until the context is canceled.
func (b *Bridge) Run(ctx context.Context) error {
	opts, prefix, err := ClientOptionsFromURL(b.BrokerURL)
	if err != nil {
		return err
	}
	if prefix == "" {
		prefix = "gatescale/" + b.deviceID() + "/"
	}
	b.prefix = prefix
	if opts.ClientID == "" {
		opts.SetClientID("gatescale-" + b.deviceID())
	}
	opts.SetOnConnectHandler(b.onConnect)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		glog.Warningf("mqtt connection lost: %v", err)
	})

	b.client = paho.NewClient(opts)
	token := b.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return context.DeadlineExceeded
	}
	if err := token.Error(); err != nil {
		return err
	}
	defer b.client.Disconnect(250)
	glog.Infof("mqtt bridging under %q", b.prefix)

	for {
		v, ok := b.Scale.WaitNext(ctx, 0)
		if !ok {
			return ctx.Err()
		}
		payload, _ := json.Marshal(map[string]float64{"w": v})
		b.client.Publish(b.prefix+"weight", 0, false, payload)
	}
}

// onConnect installs the command subscriptions. Called on every
// (re)connect, so subscriptions survive broker restarts.
func (b *Bridge) onConnect(c paho.Client) {
	glog.Info("mqtt connected")
	c.Subscribe(b.prefix+"gate/set", 0, b.handleGateSet)
	c.Subscribe(b.prefix+"scale/zero", 0, b.handleScaleZero)
	b.publishGateState()
}

// gateSet is the inbound gate command payload. Exactly one of the two
// fields applies; the ratio wins when both are present.
type gateSet struct {
	Ratio *float64 `json:"r"`
	State *int     `json:"g"`
}

func (b *Bridge) handleGateSet(_ paho.Client, msg paho.Message) {
	var cmd gateSet
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		glog.Warningf("bad gate/set payload: %v", err)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		var err error
		switch {
		case cmd.Ratio != nil:
			err = b.Gate.SetRatio(ctx, *cmd.Ratio, true)
		case cmd.State != nil:
			err = b.Gate.SetState(ctx, gate.State(*cmd.State), true)
		default:
			glog.Warning("gate/set payload carries no command")
			return
		}
		if err != nil {
			glog.Warningf("gate/set: %v", err)
			return
		}
		b.publishGateState()
	}()
}

func (b *Bridge) handleScaleZero(_ paho.Client, _ paho.Message) {
	if err := b.Scale.ForceZero(); err != nil {
		glog.Warningf("scale/zero: %v", err)
	}
}

// publishGateState publishes the discrete state retained, so late
// subscribers see the current position.
func (b *Bridge) publishGateState() {
	st := b.Gate.State()
	payload, _ := json.Marshal(map[string]interface{}{
		"g":     int(st),
		"state": st.String(),
	})
	b.client.Publish(b.prefix+"gate", 0, true, payload)
}
