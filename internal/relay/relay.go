// Package relay republishes one source publisher's stream onto a
// destination path, atomically swapping which source feeds the
// destination without disturbing downstream subscribers.
package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/nlyu1/agora/internal/codec"
	"github.com/nlyu1/agora/internal/connhandle"
	"github.com/nlyu1/agora/internal/metaserver"
	"github.com/nlyu1/agora/internal/publisher"
	"github.com/nlyu1/agora/internal/subscriber"
)

const component = "relay::Relay"

// Relay owns a destination Publisher[T] and, at any moment, at most
// one active source Subscriber[T] whose values it republishes.
type Relay[T any] struct {
	dest  *publisher.Publisher[T]
	codec codec.Codec[T]
	log   *logrus.Entry

	mu         sync.Mutex
	cancelCurr context.CancelFunc
}

// New creates the destination publisher at destPath, pre-populated
// with initial, without attaching any source yet. Call SwapOn to start
// forwarding.
func New[T any](ctx context.Context, destPath string, initial T, c codec.Codec[T],
	metaClient *metaserver.Client, hostGateway connhandle.ConnectionHandle, log *logrus.Entry) (*Relay[T], error) {

	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	dest, err := publisher.New(ctx, "relay", destPath, initial, c, metaClient, hostGateway, log)
	if err != nil {
		return nil, fmt.Errorf("%s.New: %w", component, err)
	}
	return &Relay[T]{dest: dest, codec: c, log: log.WithField("dest_path", destPath)}, nil
}

// SwapOn atomically re-sources the relay: it resolves a fresh
// Subscriber[T] against srcPath (via srcMetaClient), forwards its
// current value first, aborts the prior source-reader task if any, and
// starts a new one forwarding every subsequent stream item.
func (r *Relay[T]) SwapOn(ctx context.Context, srcPath string, srcMetaClient *metaserver.Client) error {
	sub, err := subscriber.New[T](ctx, srcPath, r.codec, "bytes", srcMetaClient, r.log)
	if err != nil {
		return fmt.Errorf("%s.SwapOn: %w", component, err)
	}

	current, stream, err := sub.GetStream(ctx)
	if err != nil {
		sub.Close()
		return fmt.Errorf("%s.SwapOn: %w", component, err)
	}

	r.mu.Lock()
	if r.cancelCurr != nil {
		r.cancelCurr()
	}
	pumpCtx, cancel := context.WithCancel(ctx)
	r.cancelCurr = cancel
	r.mu.Unlock()

	r.dest.Publish(current)

	go r.pump(pumpCtx, sub, stream)
	return nil
}

func (r *Relay[T]) pump(ctx context.Context, sub *subscriber.Subscriber[T], stream <-chan subscriber.StreamItem[T]) {
	defer sub.Close()
	for {
		select {
		case item, ok := <-stream:
			if !ok {
				return
			}
			if item.Err != nil {
				r.log.Errorf("%s.pump: source stream error: %v", component, item.Err)
				continue
			}
			r.dest.Publish(item.Value)
		case <-ctx.Done():
			return
		}
	}
}

// Close cancels the active source pump and the destination publisher.
func (r *Relay[T]) Close() error {
	r.mu.Lock()
	if r.cancelCurr != nil {
		r.cancelCurr()
	}
	r.mu.Unlock()
	return r.dest.Close()
}
