// Package rawstream implements the per-publisher broadcast endpoint:
// a single-producer ingress queue feeding a bounded, lossy fan-out
// that every connected WebSocket client drains independently.
package rawstream

import (
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/nlyu1/agora/internal/agoraerr"
	"github.com/nlyu1/agora/internal/sockutil"
)

const serverComponent = "rawstream::Server"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server binds a Unix-domain-socket WebSocket endpoint that pushes
// every published message to each connected client as a binary frame.
type Server struct {
	sockPath  string
	broadcast *Broadcast
	ingress   chan []byte
	log       *logrus.Entry

	listener net.Listener
	httpSrv  *http.Server

	wg       sync.WaitGroup
	closeOnc sync.Once
	done     chan struct{}
}

// NewServer binds the broadcast socket for agoraPath/view ("bytes" or
// "string") and starts the ingress pump and accept loop.
func NewServer(agoraPath, view string, capacity int, log *logrus.Entry) (*Server, error) {
	sockPath := sockutil.RawStreamSocketPath(agoraPath, view)
	l, err := sockutil.Listen(sockPath)
	if err != nil {
		return nil, agoraerr.Transport(serverComponent, "NewServer", err)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	s := &Server{
		sockPath:  sockPath,
		broadcast: NewBroadcast(capacity),
		ingress:   make(chan []byte, 256),
		log:       log.WithField("rawstream_socket", sockPath),
		listener:  l,
		done:      make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleConn)
	s.httpSrv = &http.Server{Handler: mux}

	s.wg.Add(2)
	go s.ingestLoop()
	go func() {
		defer s.wg.Done()
		if err := s.httpSrv.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("rawstream server stopped: %v", err)
		}
	}()

	return s, nil
}

func (s *Server) ingestLoop() {
	defer s.wg.Done()
	for {
		select {
		case data, ok := <-s.ingress:
			if !ok {
				return
			}
			s.broadcast.Publish(data)
		case <-s.done:
			return
		}
	}
}

// Publish enqueues data for broadcast. Best-effort: if the ingress
// queue is full the oldest pending message is dropped so the caller
// never blocks.
func (s *Server) Publish(data []byte) {
	select {
	case s.ingress <- data:
	default:
		select {
		case <-s.ingress:
		default:
		}
		select {
		case s.ingress <- data:
		default:
		}
	}
}

func (s *Server) handleConn(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debugf("rawstream upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sub := s.broadcast.Subscribe()
	defer s.broadcast.Unsubscribe(sub)

	for {
		data, err := sub.Recv(r.Context())
		if err != nil {
			if _, ok := err.(*LaggedError); ok {
				s.log.Warnf("subscriber lagged: %v", err)
				continue
			}
			return
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			return
		}
	}
}

// Close tears down the accept loop, ingress pump and socket file. Safe
// to call more than once.
func (s *Server) Close() error {
	var err error
	s.closeOnc.Do(func() {
		close(s.done)
		err = s.httpSrv.Close()
		s.wg.Wait()
		s.broadcast.Close()
		sockutil.Remove(s.sockPath)
	})
	return err
}
