// Package gateway implements the TCP/WebSocket front door: it accepts
// external WebSocket connections, maps the request path to a local
// Unix-domain-socket endpoint, and relays bytes transparently in both
// directions.
package gateway

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	neturl "net/url"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/nlyu1/agora/internal/agoraerr"
	"github.com/nlyu1/agora/internal/sockutil"
)

const component = "gateway::Gateway"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
	Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
		http.Error(w, reason.Error(), status)
	},
}

// Gateway owns a single TCP listener and relays every accepted
// connection into the matching local socket under /tmp/agora.
type Gateway struct {
	port uint16
	log  *logrus.Entry

	listener net.Listener
	httpSrv  *http.Server

	wg       sync.WaitGroup
	closeOnc sync.Once
}

// New binds the gateway's TCP listener on port and starts accepting.
func New(port uint16, log *logrus.Entry) (*Gateway, error) {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, agoraerr.Transport(component, "New", err)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	g := &Gateway{port: port, log: log, listener: l}

	mux := http.NewServeMux()
	mux.HandleFunc("/", g.handleConn)
	g.httpSrv = &http.Server{Handler: mux}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := g.httpSrv.Serve(g.listener); err != nil && err != http.ErrServerClosed {
			g.log.Errorf("gateway accept loop stopped: %v", err)
		}
	}()

	return g, nil
}

// route splits a request path of the form /{kind}/{agora_path} into
// its kind and the (possibly slash-containing) remainder.
func route(urlPath string) (kind, agoraPath string, err error) {
	trimmed := strings.TrimPrefix(urlPath, "/")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed gateway path %q, expected /{kind}/{agora_path}", urlPath)
	}
	kind = parts[0]
	if kind != "rawstream" && kind != "ping" {
		return "", "", fmt.Errorf("unknown gateway kind %q", kind)
	}
	return kind, parts[1], nil
}

// localSocketPath maps a routed (kind, agoraPath) pair to the local
// socket it proxies to. For rawstream, agoraPath already carries its
// trailing "bytes" or "string" view segment, so the same join shape
// as sockutil.RawStreamSocketPath falls out directly.
func localSocketPath(kind, agoraPath string) string {
	if kind == "ping" {
		return sockutil.PingSocketPath(agoraPath)
	}
	return filepath.Join(sockutil.AgoraRoot, agoraPath, "rawstream.sock")
}

func (g *Gateway) handleConn(w http.ResponseWriter, r *http.Request) {
	connID := uuid.NewString()
	log := g.log.WithField("conn_id", connID)

	kind, agoraPath, err := route(r.URL.Path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sockPath := localSocketPath(kind, agoraPath)

	downConn, err := net.Dial("unix", sockPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("gateway: failed to reach local socket %s: %v", sockPath, err), http.StatusBadGateway)
		return
	}

	upConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		downConn.Close()
		log.Debugf("upgrade failed: %v", err)
		return
	}

	localURL := &neturl.URL{Scheme: "ws", Host: "localhost", Path: "/"}
	downWS, _, err := websocket.NewClient(downConn, localURL, nil, 0, 0)
	if err != nil {
		upConn.Close()
		downConn.Close()
		log.Errorf("local websocket upgrade failed for %s: %v", sockPath, err)
		return
	}

	log.WithField("local_socket", sockPath).Debug("relaying connection")
	relay(upConn, downWS, log.WithField("local_socket", sockPath))
}

// relay pumps frames bidirectionally until either side closes or
// errors, then tears both connections down.
func relay(a, b *websocket.Conn, log *logrus.Entry) {
	defer a.Close()
	defer b.Close()

	// The first pump to stop closes both connections so the other
	// pump's blocked read returns too.
	var closeOnce sync.Once
	closeBoth := func() { a.Close(); b.Close() }

	var eg errgroup.Group
	eg.Go(func() error { defer closeOnce.Do(closeBoth); return pump(a, b) })
	eg.Go(func() error { defer closeOnce.Do(closeBoth); return pump(b, a) })
	if err := eg.Wait(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Debugf("relay ended: %v", err)
	}
}

func pump(src, dst *websocket.Conn) error {
	for {
		msgType, data, err := src.ReadMessage()
		if err != nil {
			return err
		}
		if err := dst.WriteMessage(msgType, data); err != nil {
			return err
		}
	}
}

// Close stops accepting new connections.
func (g *Gateway) Close() error {
	var err error
	g.closeOnc.Do(func() {
		err = g.httpSrv.Close()
		g.wg.Wait()
	})
	return err
}
