package metaserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/nlyu1/agora/internal/agoraerr"
	"github.com/nlyu1/agora/internal/wire"
)

const serverComponent = "metaserver::Server"

// CheckLivelinessEvery is the default liveness-sweep period.
const CheckLivelinessEvery = 500 * time.Millisecond

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_metaserver_requests_total",
		Help: "Total metaserver RPCs handled, by method and outcome.",
	}, []string{"method", "outcome"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agora_metaserver_request_duration_seconds",
		Help:    "Metaserver RPC handling latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	prunedPublishersTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agora_metaserver_pruned_publishers_total",
		Help: "Total publishers removed by the liveness sweep.",
	})
)

// MustRegisterMetrics registers the metaserver's collectors against
// reg. Call once per process.
func MustRegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(requestsTotal, requestDuration, prunedPublishersTotal)
}

// Server accepts metaserver RPC connections and dispatches them
// against a shared State, plus runs the periodic liveness sweep.
type Server struct {
	state *State
	log   *logrus.Entry

	listener net.Listener
	sweepDone chan struct{}
}

// Listen binds the metaserver's TCP listener on port.
func Listen(port uint16, state *State, log *logrus.Entry) (*Server, error) {
	l, err := net.Listen("tcp", netAddr(port))
	if err != nil {
		return nil, agoraerr.Transport(serverComponent, "Listen", err)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{state: state, log: log, listener: l, sweepDone: make(chan struct{})}, nil
}

func netAddr(port uint16) string {
	return fmt.Sprintf(":%d", port)
}

// Serve runs the accept loop until ctx is cancelled or the listener is
// closed. It also launches the background liveness sweep.
func (s *Server) Serve(ctx context.Context) error {
	go s.sweepLoop(ctx)

	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				if errors.Is(err, net.ErrClosed) {
					return nil
				}
				s.log.Errorf("accept failed: %v", err)
				continue
			}
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(CheckLivelinessEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			close(s.sweepDone)
			return
		case <-ticker.C:
			pruned := s.state.PruneStalePublishers(ctx)
			if len(pruned) > 0 {
				prunedPublishersTotal.Add(float64(len(pruned)))
				s.log.Infof("liveness sweep pruned: %v", pruned)
			}
		}
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	reader := wire.NewReader(conn)
	writer := wire.NewWriter(conn)

	for {
		var req Request
		if err := reader.ReadFrame(&req); err != nil {
			return
		}
		resp := s.dispatch(ctx, req)
		if err := writer.WriteFrame(resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	start := time.Now()
	outcome := "ok"
	defer func() {
		requestsTotal.WithLabelValues(string(req.Method), outcome).Inc()
		requestDuration.WithLabelValues(string(req.Method)).Observe(time.Since(start).Seconds())
	}()

	payload, err := s.handle(ctx, req)
	if err != nil {
		outcome = "error"
		return Response{Error: err.Error()}
	}
	if payload == nil {
		return Response{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		outcome = "error"
		return Response{Error: err.Error()}
	}
	return Response{Payload: body}
}

func (s *Server) handle(ctx context.Context, req Request) (any, error) {
	switch req.Method {
	case MethodRegisterPublisher:
		var args registerPublisherArgs
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return nil, err
		}
		return s.state.RegisterPublisher(args.Name, args.Path, args.HostConnection)

	case MethodConfirmPublisher:
		var args confirmPublisherArgs
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return nil, err
		}
		return nil, s.state.ConfirmPublisher(ctx, args.Path)

	case MethodRemovePublisher:
		var args removePublisherArgs
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return nil, err
		}
		return s.state.RemovePublisher(args.Path)

	case MethodPublisherInfo:
		var args publisherInfoArgs
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return nil, err
		}
		return s.state.GetPublisherInfo(ctx, args.Path)

	case MethodPathTree:
		return pathTreeResponse{Repr: s.state.PathTreeRepr()}, nil

	default:
		return nil, agoraerr.Internal(serverComponent, "dispatch", "unknown method %q", req.Method)
	}
}

// Close stops the accept loop by closing the listener.
func (s *Server) Close() error {
	return s.listener.Close()
}
