package metaserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/nlyu1/agora/internal/agoraerr"
	"github.com/nlyu1/agora/internal/connhandle"
	"github.com/nlyu1/agora/internal/pathtree"
	"github.com/nlyu1/agora/internal/wire"
)

const clientComponent = "metaserver::Client"

// Client is a connection to a metaserver's length-prefixed JSON RPC
// surface. One Client serialises its own requests; callers needing
// concurrency should use multiple Clients or share one behind a pool.
type Client struct {
	conn   net.Conn
	writer *wire.Writer
	reader *wire.Reader

	mu sync.Mutex
}

// Dial connects to a metaserver at conn.
func Dial(conn connhandle.ConnectionHandle) (*Client, error) {
	c, err := net.Dial("tcp", conn.String())
	if err != nil {
		return nil, agoraerr.Transport(clientComponent, "Dial", err)
	}
	return &Client{conn: c, writer: wire.NewWriter(c), reader: wire.NewReader(c)}, nil
}

func (c *Client) call(ctx context.Context, method Method, args any, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	body, err := json.Marshal(args)
	if err != nil {
		return agoraerr.Serialisation(clientComponent, string(method), err)
	}
	if err := c.writer.WriteFrame(Request{Method: method, Args: body}); err != nil {
		return agoraerr.Transport(clientComponent, string(method), err)
	}

	var resp Response
	if err := c.reader.ReadFrame(&resp); err != nil {
		return agoraerr.Transport(clientComponent, string(method), err)
	}
	if !resp.Ok() {
		return fmt.Errorf("%s", resp.Error)
	}
	if out != nil && len(resp.Payload) > 0 {
		if err := json.Unmarshal(resp.Payload, out); err != nil {
			return agoraerr.Serialisation(clientComponent, string(method), err)
		}
	}
	return nil
}

func (c *Client) RegisterPublisher(ctx context.Context, name, path string, hostConn connhandle.ConnectionHandle) (PublisherInfo, error) {
	var out PublisherInfo
	err := c.call(ctx, MethodRegisterPublisher, registerPublisherArgs{Name: name, Path: path, HostConnection: hostConn}, &out)
	return out, err
}

func (c *Client) ConfirmPublisher(ctx context.Context, path string) error {
	return c.call(ctx, MethodConfirmPublisher, confirmPublisherArgs{Path: path}, nil)
}

func (c *Client) RemovePublisher(ctx context.Context, path string) (PublisherInfo, error) {
	var out PublisherInfo
	err := c.call(ctx, MethodRemovePublisher, removePublisherArgs{Path: path}, &out)
	return out, err
}

func (c *Client) PublisherInfo(ctx context.Context, path string) (PublisherInfo, error) {
	var out PublisherInfo
	err := c.call(ctx, MethodPublisherInfo, publisherInfoArgs{Path: path}, &out)
	return out, err
}

// PathTree fetches and reconstructs the live path tree.
func (c *Client) PathTree(ctx context.Context) (*pathtree.Node, error) {
	var out pathTreeResponse
	if err := c.call(ctx, MethodPathTree, struct{}{}, &out); err != nil {
		return nil, err
	}
	return pathtree.FromRepr(out.Repr)
}

func (c *Client) Close() error {
	return c.conn.Close()
}
