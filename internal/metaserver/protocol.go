package metaserver

import (
	"encoding/json"

	"github.com/nlyu1/agora/internal/connhandle"
)

// Method names the RPC surface, keying each request/response frame
// pair on the wire.
type Method string

const (
	MethodRegisterPublisher Method = "register_publisher"
	MethodConfirmPublisher  Method = "confirm_publisher"
	MethodRemovePublisher   Method = "remove_publisher"
	MethodPathTree          Method = "path_tree"
	MethodPublisherInfo     Method = "publisher_info"
)

// PublisherInfo is the registry record returned by register_publisher
// and publisher_info.
type PublisherInfo struct {
	Name           string                      `json:"name"`
	HostConnection connhandle.ConnectionHandle `json:"host_connection"`
	AgoraPath      string                      `json:"agora_path"`
}

// Request is the envelope every RPC call sends: a method name plus its
// arguments marshalled into Args as a JSON object with named fields.
type Request struct {
	Method Method          `json:"method"`
	Args   json.RawMessage `json:"args"`
}

// Response is the envelope every RPC call receives: either a JSON
// payload on success, or a non-empty Error string naming the failure.
type Response struct {
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (r Response) Ok() bool {
	return r.Error == ""
}

type registerPublisherArgs struct {
	Name           string                      `json:"name"`
	Path           string                      `json:"path"`
	HostConnection connhandle.ConnectionHandle `json:"host_connection"`
}

type confirmPublisherArgs struct {
	Path string `json:"path"`
}

type removePublisherArgs struct {
	Path string `json:"path"`
}

type publisherInfoArgs struct {
	Path string `json:"path"`
}

type pathTreeResponse struct {
	Repr string `json:"repr"`
}
