package signal

import (
	"time"

	"github.com/droidstream/signal/pkg/api"
	"github.com/droidstream/signal/pkg/logger"
	"github.com/droidstream/signal/pkg/network"
)

type WorkerStatus string

const (
	Available WorkerStatus = "available"
	Busy      WorkerStatus = "busy"
)

// Worker is one remote emulator process. Workers are single-use per
// connection: once paired and released they are torn down, never returned
// to the pool, so a released worker can't leak a dirty emulator state into
// the next session. A fresh worker process reconnects in its place.
type Worker struct {
	id   network.Uid
	conn Transport
	log  *logger.Logger

	status WorkerStatus
	games  []string
	client *Client

	// set after REGISTER; only registered workers are matchable
	registered bool

	lastPing time.Time
	closed   bool
}

func NewWorker(conn Transport, now time.Time, log *logger.Logger) *Worker {
	id := network.NewUid()
	return &Worker{
		id:       id,
		conn:     conn,
		status:   Available,
		lastPing: now,
		log:      log.Extend(log.With().Str("cid", id.Short()).Str("role", "w")),
	}
}

func (w *Worker) Id() network.Uid { return w.id }

func (w *Worker) Supports(game string) bool {
	for _, g := range w.games {
		if g == game {
			return true
		}
	}
	return false
}

func (w *Worker) send(m any) {
	data, err := api.Encode(m)
	if err != nil {
		w.log.Error().Err(err).Msg("couldn't encode message")
		return
	}
	w.conn.Write(data)
}

// Relay forwards a raw peer message without touching its payload.
func (w *Worker) Relay(raw []byte) { w.conn.Write(raw) }

func (w *Worker) SendPing() { w.send(api.NewPing()) }

func (w *Worker) SendStart(userId string, maxVideoSize int, ice []api.IceServer) {
	w.send(api.NewStart(userId, maxVideoSize, ice))
}

func (w *Worker) SendGameSelected(gameId string) { w.send(api.NewGameSelected(gameId)) }
func (w *Worker) SendClientDisconnected()        { w.send(api.NewClientDisconnected()) }
func (w *Worker) SendShutdown(reason string)     { w.send(api.NewShutdown(reason)) }

func (w *Worker) pingExpired(now time.Time, timeout time.Duration) bool {
	return now.Sub(w.lastPing) > timeout
}
