package ping

import (
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/nlyu1/agora/internal/agoraerr"
	"github.com/nlyu1/agora/internal/payload"
	"github.com/nlyu1/agora/internal/sockutil"
)

const serverComponent = "ping::Server"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server binds a Unix-domain-socket endpoint that answers a synchronous
// "current value" query, pre-populated with the publisher's initial
// payload and mutated via UpdatePayload on every publish.
type Server struct {
	sockPath string
	slot     *payload.Slot
	log      *logrus.Entry

	listener net.Listener
	httpSrv  *http.Server

	wg       sync.WaitGroup
	closeOnc sync.Once
}

// NewServer binds the ping socket for agoraPath and begins accepting
// connections. A bind failure is fatal to the caller.
func NewServer(agoraPath string, initial payload.Payload, log *logrus.Entry) (*Server, error) {
	sockPath := sockutil.PingSocketPath(agoraPath)
	l, err := sockutil.Listen(sockPath)
	if err != nil {
		return nil, agoraerr.Transport(serverComponent, "NewServer", err)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	s := &Server{
		sockPath: sockPath,
		slot:     payload.NewSlot(initial),
		log:      log.WithField("ping_socket", sockPath),
		listener: l,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleConn)
	s.httpSrv = &http.Server{Handler: mux}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpSrv.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("ping server stopped: %v", err)
		}
	}()

	return s, nil
}

func (s *Server) handleConn(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debugf("ping upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage || string(msg) != pingRequestText {
			continue
		}
		snap := s.slot.Snapshot()
		resp := Response{VecPayload: snap.VecPayload, StrPayload: snap.StrPayload, Timestamp: snap.Timestamp}
		body, err := json.Marshal(resp)
		if err != nil {
			s.log.Errorf("marshal ping response: %v", err)
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
			return
		}
	}
}

// UpdatePayload replaces the served payload, taking a write lock for
// the minimum time necessary.
func (s *Server) UpdatePayload(vec []byte, str string) {
	s.slot.Update(vec, str)
}

// Close tears down the listener and socket file. Safe to call more
// than once.
func (s *Server) Close() error {
	var err error
	s.closeOnc.Do(func() {
		err = s.httpSrv.Close()
		s.wg.Wait()
		sockutil.Remove(s.sockPath)
	})
	return err
}
