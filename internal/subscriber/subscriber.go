// Package subscriber resolves an agora path via the metaserver and
// consumes its ping/broadcast endpoints through the gateway.
package subscriber

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nlyu1/agora/internal/agoraerr"
	"github.com/nlyu1/agora/internal/codec"
	"github.com/nlyu1/agora/internal/metaserver"
	"github.com/nlyu1/agora/internal/ping"
	"github.com/nlyu1/agora/internal/rawstream"
)

const component = "subscriber::Subscriber"

// StreamItem is one element of a subscriber's live stream: either a
// decoded value or a decode/lag error that does not end the stream.
type StreamItem[T any] struct {
	Value T
	Err   error
}

// Subscriber resolves one typed stream and lets callers query its
// current value or consume a live feed of updates.
type Subscriber[T any] struct {
	path  string
	codec codec.Codec[T]
	log   *logrus.Entry

	pingClient *ping.Client
	rawClient  *rawstream.Client
}

// normalisePath strips bounding slashes and rejects an empty result or
// a doubled slash. The rest of the path grammar (whitespace-padded
// segments, "..") is not checked here; the metaserver applies it when
// the path is looked up.
func normalisePath(path string) (string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "", agoraerr.Validation(component, "normalisePath", "path cannot be empty")
	}
	if strings.Contains(trimmed, "//") {
		return "", agoraerr.Validation(component, "normalisePath", "path %q contains double slashes", path)
	}
	return trimmed, nil
}

// New resolves rawPath through metaClient and connects to its ping and
// broadcast endpoints. view names the broadcast view to consume,
// "bytes" or "string"; the caller passes it explicitly, independent of
// the codec.
func New[T any](ctx context.Context, rawPath string, c codec.Codec[T], view string,
	metaClient *metaserver.Client, log *logrus.Entry) (*Subscriber[T], error) {

	path, err := normalisePath(rawPath)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("agora_path", path)

	info, err := metaClient.PublisherInfo(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%s.New: publisher_info: %w", component, err)
	}

	pingClient, err := ping.NewClient(info.HostConnection.WSURL("/ping/" + path))
	if err != nil {
		return nil, fmt.Errorf("%s.New: ping client: %w", component, err)
	}

	rawClient := rawstream.NewClient(info.HostConnection.WSURL("/rawstream/"+path+"/"+view), rawstream.DefaultPollInterval, log)

	return &Subscriber[T]{path: path, codec: c, log: log, pingClient: pingClient, rawClient: rawClient}, nil
}

// Get returns the current value by synchronous ping.
func (s *Subscriber[T]) Get(ctx context.Context) (T, error) {
	var zero T
	resp, err := s.pingClient.Ping(ctx)
	if err != nil {
		return zero, fmt.Errorf("%s.Get: %w", component, err)
	}
	v, err := s.codec.Decode(resp.VecPayload)
	if err != nil {
		return zero, agoraerr.Serialisation(component, "Get", err)
	}
	return v, nil
}

// GetStream returns the current value plus a channel of subsequent
// updates. Decode or lag errors are surfaced as error items without
// closing the channel; the channel closes when ctx is cancelled.
func (s *Subscriber[T]) GetStream(ctx context.Context) (T, <-chan StreamItem[T], error) {
	current, err := s.Get(ctx)
	if err != nil {
		var zero T
		return zero, nil, err
	}

	sub := s.rawClient.Subscribe()
	out := make(chan StreamItem[T], 16)
	go func() {
		defer close(out)
		for {
			data, err := sub.Recv(ctx)
			if err != nil {
				if _, ok := err.(*rawstream.LaggedError); ok {
					select {
					case out <- StreamItem[T]{Err: err}:
					case <-ctx.Done():
						return
					}
					continue
				}
				return
			}
			v, err := s.codec.Decode(data)
			item := StreamItem[T]{Value: v, Err: err}
			select {
			case out <- item:
			case <-ctx.Done():
				return
			}
		}
	}()

	return current, out, nil
}

// Close tears down both clients.
func (s *Subscriber[T]) Close() error {
	s.pingClient.Close()
	s.rawClient.Close()
	return nil
}
