package ping

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/nlyu1/agora/internal/agoraerr"
)

const clientComponent = "ping::Client"

// Client dials a ping endpoint (directly, or through a gateway's
// ws://host/ping/{path} proxy) and issues synchronous ping requests.
// One request may be in flight at a time; callers needing concurrent
// pings should use multiple Clients.
type Client struct {
	url string

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewClient dials url (already fully formed, e.g. a gateway's
// ws://host:port/ping/{path} or a direct ws://unix socket bridge).
func NewClient(url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, agoraerr.Transport(clientComponent, "NewClient", err)
	}
	return &Client{url: url, conn: conn}, nil
}

// Ping sends the "ping" text frame and waits for the JSON response.
func (c *Client) Ping(ctx context.Context) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
		_ = c.conn.SetReadDeadline(deadline)
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(pingRequestText)); err != nil {
		return Response{}, agoraerr.Transport(clientComponent, "Ping", err)
	}

	msgType, body, err := c.conn.ReadMessage()
	if err != nil {
		return Response{}, agoraerr.Transport(clientComponent, "Ping", err)
	}
	if msgType != websocket.TextMessage {
		return Response{}, agoraerr.Serialisation(clientComponent, "Ping", nil)
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return Response{}, agoraerr.Serialisation(clientComponent, "Ping", err)
	}
	return resp, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}
