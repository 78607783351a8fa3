// Package api defines the wire protocol spoken between the signal broker,
// browser clients, and emulator workers.
//
// Every message is a flat JSON object tagged with a type field:
//
//	{"type":"queue","appId":"com.supercell.clashroyale"}
//
// The broker unwraps only the messages addressed to it; WebRTC negotiation
// payloads (offer/answer/ice-candidate) are relayed verbatim and never
// interpreted.
package api

import (
	"github.com/goccy/go-json"
)

// MT is a message type tag.
type MT string

const (
	// heartbeat
	Ping MT = "ping"
	Pong MT = "pong"

	// worker capability declaration
	Register MT = "register"

	// queueing and session start
	Queue        MT = "queue"
	QueueInfo    MT = "queue-info"
	QueueReady   MT = "queue-ready"
	Start        MT = "start"
	GameSelected MT = "client-game-selected"

	// WebRTC negotiation relay
	Offer        MT = "offer"
	Answer       MT = "answer"
	IceCandidate MT = "ice-candidate"

	// liveness
	ClientInput MT = "client-input"

	// failure and teardown
	Error              MT = "error"
	Shutdown           MT = "shutdown"
	WorkerCrashed      MT = "worker-crashed"
	ClientDisconnected MT = "client-disconnected"
	WorkerDisconnected MT = "worker-disconnected"

	// auth confirmation
	Authenticated MT = "authenticated"
)

// Error codes surfaced to clients.
type Code string

const (
	NoSubscription     Code = "NO_SUBSCRIPTION"
	NoWorkersAvailable Code = "NO_WORKERS_AVAILABLE"
	InvalidRequest     Code = "INVALID_REQUEST"
	CrashedWorker      Code = "WORKER_CRASHED"
	AuthFailed         Code = "AUTH_FAILED"
	ConnectionTimeout  Code = "CONNECTION_TIMEOUT"
	WebrtcFailed       Code = "WEBRTC_FAILED"
	AlreadyInQueue     Code = "ALREADY_IN_QUEUE"
	AlreadyInGame      Code = "ALREADY_IN_GAME"
	SessionTimeout     Code = "SESSION_TIMEOUT"
)

// In is an inbound message: the type tag plus the raw bytes of the whole
// message for a second-pass unmarshal or a verbatim relay.
type In struct {
	T   MT
	Raw []byte
}

// Decode reads the type tag off a raw message.
func Decode(data []byte) (In, error) {
	var env struct {
		T MT `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return In{}, err
	}
	return In{T: env.T, Raw: data}, nil
}

// Encode marshals an outbound message.
func Encode(m any) ([]byte, error) { return json.Marshal(m) }

// Unwrap unmarshals a raw message into the given type, nil on failure.
func Unwrap[T any](data []byte) *T {
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil
	}
	return out
}

// IceServer is a WebRTC ICE server entry handed to both peers of a pairing.
type IceServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}
