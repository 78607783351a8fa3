package signal

import (
	"time"

	"github.com/droidstream/signal/pkg/api"
	"github.com/droidstream/signal/pkg/auth"
	"github.com/droidstream/signal/pkg/logger"
	"github.com/droidstream/signal/pkg/network"
)

// Transport is the session's outbound handle to its connection. The
// underlying channel is bidirectional, ordered, and message-preserving;
// inbound traffic arrives through the hub dispatch.
type Transport interface {
	Write(data []byte)
	Close()
}

type ClientState string

const (
	Waiting      ClientState = "waiting"
	Queued       ClientState = "queued"
	Connecting   ClientState = "connecting"
	Connected    ClientState = "connected"
	Disconnected ClientState = "disconnected"
)

// Client is one authenticated browser session. All fields are guarded by
// the hub lock; the session itself holds no concurrency primitives.
type Client struct {
	id     network.Uid
	userId string
	access auth.AccessType
	conn   Transport
	log    *logger.Logger

	state     ClientState
	game      string
	videoSize int
	worker    *Worker
	ice       []api.IceServer

	lastPing   time.Time
	lastInput  time.Time
	queuedAt   time.Time
	assignedAt time.Time

	closed bool
}

func NewClient(conn Transport, usr auth.User, now time.Time, log *logger.Logger) *Client {
	id := network.NewUid()
	return &Client{
		id:        id,
		userId:    usr.Id,
		access:    usr.Access,
		conn:      conn,
		state:     Waiting,
		lastPing:  now,
		lastInput: now,
		log:       log.Extend(log.With().Str("cid", id.Short()).Str("role", "c")),
	}
}

func (c *Client) Id() network.Uid { return c.id }

func (c *Client) send(m any) {
	data, err := api.Encode(m)
	if err != nil {
		c.log.Error().Err(err).Msg("couldn't encode message")
		return
	}
	c.conn.Write(data)
}

// Relay forwards a raw peer message without touching its payload.
func (c *Client) Relay(raw []byte) { c.conn.Write(raw) }

func (c *Client) SendPing()          { c.send(api.NewPing()) }
func (c *Client) SendAuthenticated() { c.send(api.NewAuthenticated()) }

func (c *Client) SendError(code api.Code, message string) { c.send(api.NewError(code, message)) }
func (c *Client) SendShutdown(reason string)              { c.send(api.NewShutdown(reason)) }
func (c *Client) SendWorkerDisconnected()                 { c.send(api.NewWorkerDisconnected()) }

func (c *Client) SendQueueInfo(position, total int) { c.send(api.NewQueueInfo(position, total)) }
func (c *Client) SendQueueReady()                   { c.send(api.NewQueueReady(c.ice)) }

// Timeout checks, invoked by the periodic sweeps only.

func (c *Client) pingExpired(now time.Time, timeout time.Duration) bool {
	return now.Sub(c.lastPing) > timeout
}

func (c *Client) inputExpired(now time.Time, timeout time.Duration) bool {
	return c.state == Connected && now.Sub(c.lastInput) > timeout
}

func (c *Client) queueExpired(now time.Time, timeout time.Duration) bool {
	return c.state == Queued && !c.queuedAt.IsZero() && now.Sub(c.queuedAt) > timeout
}

// connectingExpired catches a browser that received QUEUE_READY but never
// followed up with START.
func (c *Client) connectingExpired(now time.Time, timeout time.Duration) bool {
	return c.state == Connecting && !c.assignedAt.IsZero() && now.Sub(c.assignedAt) > timeout
}

func (c *Client) sessionExpired(now time.Time, max time.Duration) bool {
	return c.state == Connected && !c.assignedAt.IsZero() && now.Sub(c.assignedAt) > max
}
