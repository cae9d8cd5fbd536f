// Package publisher composes the ping and byte/string broadcast
// endpoints for one registered path and keeps the metaserver apprised
// of its existence.
package publisher

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nlyu1/agora/internal/codec"
	"github.com/nlyu1/agora/internal/connhandle"
	"github.com/nlyu1/agora/internal/metaserver"
	"github.com/nlyu1/agora/internal/payload"
	"github.com/nlyu1/agora/internal/ping"
	"github.com/nlyu1/agora/internal/rawstream"
)

const component = "publisher::Publisher"

// Publisher exposes a single typed stream at an agora path: a ping
// endpoint for the current value, and byte/string broadcast endpoints
// for every subsequent update.
type Publisher[T any] struct {
	agoraPath string
	codec     codec.Codec[T]
	log       *logrus.Entry

	metaClient *metaserver.Client

	pingSrv   *ping.Server
	bytesSrv  *rawstream.Server
	stringSrv *rawstream.Server
}

// New registers name at agoraPath with the metaserver fronted by
// hostGateway, binds the three local endpoints pre-populated with
// initial, and confirms the registration. Any failure after
// registration rolls the registration back before returning.
func New[T any](ctx context.Context, name, agoraPath string, initial T, c codec.Codec[T],
	metaClient *metaserver.Client, hostGateway connhandle.ConnectionHandle, log *logrus.Entry) (*Publisher[T], error) {

	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("agora_path", agoraPath)

	if _, err := metaClient.RegisterPublisher(ctx, name, agoraPath, hostGateway); err != nil {
		return nil, fmt.Errorf("%s.New: register_publisher: %w", component, err)
	}

	p := &Publisher[T]{agoraPath: agoraPath, codec: c, log: log, metaClient: metaClient}

	vec, str := c.Encode(initial)
	initialPayload := payload.Payload{VecPayload: vec, StrPayload: str}

	pingSrv, err := ping.NewServer(agoraPath, initialPayload, log)
	if err != nil {
		p.rollback(ctx)
		return nil, fmt.Errorf("%s.New: ping server: %w", component, err)
	}
	p.pingSrv = pingSrv

	bytesSrv, err := rawstream.NewServer(agoraPath, "bytes", rawstream.DefaultCapacity, log)
	if err != nil {
		p.Close()
		p.rollback(ctx)
		return nil, fmt.Errorf("%s.New: bytes broadcast server: %w", component, err)
	}
	p.bytesSrv = bytesSrv

	stringSrv, err := rawstream.NewServer(agoraPath, "string", rawstream.DefaultCapacity, log)
	if err != nil {
		p.Close()
		p.rollback(ctx)
		return nil, fmt.Errorf("%s.New: string broadcast server: %w", component, err)
	}
	p.stringSrv = stringSrv

	if err := metaClient.ConfirmPublisher(ctx, agoraPath); err != nil {
		p.Close()
		return nil, fmt.Errorf("%s.New: confirm_publisher: %w", component, err)
	}

	return p, nil
}

func (p *Publisher[T]) rollback(ctx context.Context) {
	if _, err := p.metaClient.RemovePublisher(ctx, p.agoraPath); err != nil {
		p.log.Warnf("rollback remove_publisher failed: %v", err)
	}
}

// Publish re-serialises value and pushes it to the ping slot and both
// broadcast endpoints. All three sinks are best-effort: a broadcast
// with no subscribers still succeeds, and a full ingress queue drops
// the oldest pending message rather than blocking.
func (p *Publisher[T]) Publish(value T) {
	vec, str := p.codec.Encode(value)
	p.pingSrv.UpdatePayload(vec, str)
	p.bytesSrv.Publish(vec)
	p.stringSrv.Publish([]byte(str))
}

// Close aborts every endpoint and removes their socket files. The
// metaserver's liveness sweep, not this call, removes the path's
// registration.
func (p *Publisher[T]) Close() error {
	if p.pingSrv != nil {
		p.pingSrv.Close()
	}
	if p.bytesSrv != nil {
		p.bytesSrv.Close()
	}
	if p.stringSrv != nil {
		p.stringSrv.Close()
	}
	return nil
}
