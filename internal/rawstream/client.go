package rawstream

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const clientComponent = "rawstream::Client"

// DefaultPollInterval is how long the reconnect loop waits after a
// dropped or failed connection before trying again.
const DefaultPollInterval = 100 * time.Millisecond

// Client maintains an endless reconnect loop against a broadcast
// endpoint (directly, or through a gateway proxy) and republishes
// every binary frame it receives onto a local Broadcast that callers
// subscribe to.
type Client struct {
	url          string
	pollInterval time.Duration
	log          *logrus.Entry

	local *Broadcast

	cancel context.CancelFunc
}

// NewClient starts the reconnect loop against url immediately.
func NewClient(url string, pollInterval time.Duration, log *logrus.Entry) *Client {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		url:          url,
		pollInterval: pollInterval,
		log:          log.WithField("rawstream_url", url),
		local:        NewBroadcast(DefaultCapacity),
		cancel:       cancel,
	}
	go c.run(ctx)
	return c
}

// Subscribe returns a fresh local view of the upstream broadcast.
func (c *Client) Subscribe() *Subscription {
	return c.local.Subscribe()
}

func (c *Client) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
		if err != nil {
			c.log.Debugf("connect failed: %v", err)
			c.sleep(ctx)
			continue
		}

		c.pump(ctx, conn)
		conn.Close()
		c.sleep(ctx)
	}
}

func (c *Client) pump(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			c.log.Debugf("read failed, will reconnect: %v", err)
			return
		}
		if msgType != websocket.BinaryMessage {
			c.log.Debugf("ignoring non-binary frame from server")
			continue
		}
		c.local.Publish(data)
	}
}

func (c *Client) sleep(ctx context.Context) {
	t := time.NewTimer(c.pollInterval)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// Close stops the reconnect loop and releases local subscribers.
func (c *Client) Close() error {
	c.cancel()
	c.local.Close()
	return nil
}
