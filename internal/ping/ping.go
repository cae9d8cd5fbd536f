// Package ping implements the synchronous "current value" query: a
// client sends the text frame "ping" and receives back a JSON
// snapshot of the publisher's latest payload.
package ping

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Response is the JSON body of a ping reply.
type Response struct {
	VecPayload []byte    `json:"vec_payload"`
	StrPayload string    `json:"str_payload"`
	Timestamp  time.Time `json:"timestamp"`
}

const pingRequestText = "ping"
