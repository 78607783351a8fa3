package signal

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/droidstream/signal/pkg/api"
	"github.com/droidstream/signal/pkg/auth"
	"github.com/droidstream/signal/pkg/config"
	"github.com/droidstream/signal/pkg/logger"
)

type fakeConn struct {
	sent   [][]byte
	closed bool
}

func (f *fakeConn) Write(data []byte) { f.sent = append(f.sent, data) }
func (f *fakeConn) Close()            { f.closed = true }

func (f *fakeConn) count(t api.MT) (n int) {
	for _, m := range f.sent {
		if in, err := api.Decode(m); err == nil && in.T == t {
			n++
		}
	}
	return
}

func (f *fakeConn) has(t api.MT) bool { return f.count(t) > 0 }

// last returns the most recent message of the given type unwrapped into T.
func last[T any](f *fakeConn, t api.MT) *T {
	for i := len(f.sent) - 1; i >= 0; i-- {
		if in, err := api.Decode(f.sent[i]); err == nil && in.T == t {
			return api.Unwrap[T](in.Raw)
		}
	}
	return nil
}

type fakeIce struct{ servers []api.IceServer }

func (f fakeIce) IceServers() []api.IceServer { return f.servers }

type testHub struct {
	*Hub
	clock time.Time
}

func newTestHub() *testHub {
	conf := config.Broker{
		PingInterval:      5 * time.Second,
		PingTimeout:       10 * time.Second,
		InputTimeout:      3 * time.Minute,
		ConnectingTimeout: 30 * time.Second,
		QueueTimeout:      5 * time.Minute,
		MatchInterval:     time.Second,
		MaxSessionTime:    time.Hour,
		FreeMaxVideoSize:  360,
	}
	th := &testHub{clock: time.Unix(1700000000, 0)}
	th.Hub = NewHub(conf, auth.Static{Access: auth.Paid}, fakeIce{}, logger.Default())
	th.Hub.now = func() time.Time { return th.clock }
	return th
}

func (th *testHub) advance(d time.Duration) { th.clock = th.clock.Add(d) }

func (th *testHub) connectClient(userId string) (*Client, *fakeConn) {
	conn := &fakeConn{}
	return th.ConnectClient(conn, auth.User{Id: userId, Access: auth.Paid}), conn
}

func (th *testHub) connectWorker(games ...string) (*Worker, *fakeConn) {
	conn := &fakeConn{}
	w := th.ConnectWorker(conn)
	if len(games) > 0 {
		th.send(conn, map[string]any{"type": api.Register, "games": games})
	}
	return w, conn
}

func (th *testHub) send(conn *fakeConn, m any) {
	data, err := api.Encode(m)
	if err != nil {
		panic(err)
	}
	if _, ok := th.registry.workerConns[conn]; ok {
		th.HandleWorkerData(conn, data)
	} else {
		th.HandleClientData(conn, data)
	}
}

// QueueRequest carries no type tag, so build queue messages by hand.
func queueMsg(game string, size int) map[string]any {
	return map[string]any{"type": api.Queue, "appId": game, "maxVideoSize": size}
}

func TestConnectSendsAuthenticated(t *testing.T) {
	th := newTestHub()
	_, conn := th.connectClient("u1")
	if !conn.has(api.Authenticated) {
		t.Error("no authenticated message after connect")
	}
}

func TestQueueAndMatch(t *testing.T) {
	th := newTestHub()
	_, wConn := th.connectWorker("g1")
	c, cConn := th.connectClient("u1")

	th.send(cConn, queueMsg("g1", 0))
	if c.state != Queued {
		t.Fatalf("unexpected state: %v", c.state)
	}
	if qi := last[api.QueueInfoMessage](cConn, api.QueueInfo); qi == nil || qi.Position != 1 || qi.Total != 1 {
		t.Errorf("unexpected queue info: %+v", qi)
	}

	th.matchTick(th.clock)

	if c.state != Connecting {
		t.Errorf("unexpected state after match: %v", c.state)
	}
	if !cConn.has(api.QueueReady) {
		t.Error("matched client got no queue-ready")
	}
	if th.queue.Len() != 0 {
		t.Error("matched client still queued")
	}
	if w := th.registry.WorkerByConn(wConn); w.status != Busy {
		t.Errorf("paired worker not busy: %v", w.status)
	}
}

func TestMatchIsFifo(t *testing.T) {
	th := newTestHub()
	first, fConn := th.connectClient("u1")
	second, sConn := th.connectClient("u2")
	th.send(fConn, queueMsg("g1", 0))
	th.send(sConn, queueMsg("g1", 0))
	th.connectWorker("g1")

	th.matchTick(th.clock)

	if first.state != Connecting {
		t.Error("head of the queue was not matched")
	}
	if second.state != Queued {
		t.Error("tail of the queue was matched ahead of its turn")
	}
	// the survivor is told about its promotion
	if qi := last[api.QueueInfoMessage](sConn, api.QueueInfo); qi == nil || qi.Position != 1 || qi.Total != 1 {
		t.Errorf("unexpected queue info after match: %+v", qi)
	}
}

func TestStartFlow(t *testing.T) {
	th := newTestHub()
	th.Hub.turn = fakeIce{servers: []api.IceServer{{URLs: []string{"turn:relay.example.com:3478"}}}}
	_, wConn := th.connectWorker("g1")
	c, cConn := th.connectClient("u1")
	th.send(cConn, queueMsg("g1", 720))
	th.matchTick(th.clock)

	if qr := last[api.QueueReadyMessage](cConn, api.QueueReady); qr == nil || len(qr.IceServers) != 1 {
		t.Fatalf("queue-ready missing ice servers: %+v", qr)
	}

	th.send(cConn, map[string]any{"type": api.Start})

	if c.state != Connected {
		t.Fatalf("unexpected state: %v", c.state)
	}
	start := last[api.StartMessage](wConn, api.Start)
	if start == nil || start.UserId != "u1" || start.MaxVideoSize != 720 || len(start.IceServers) != 1 {
		t.Errorf("unexpected start message: %+v", start)
	}
	if gs := last[api.GameSelectedMessage](wConn, api.GameSelected); gs == nil || gs.GameId != "g1" {
		t.Errorf("unexpected game selection: %+v", gs)
	}

	// a duplicate start changes nothing
	th.send(cConn, map[string]any{"type": api.Start})
	if wConn.count(api.Start) != 1 {
		t.Error("duplicate start reached the worker")
	}
}

func TestStartWithoutWorkerFails(t *testing.T) {
	th := newTestHub()
	c, cConn := th.connectClient("u1")
	th.send(cConn, map[string]any{"type": api.Start})

	if e := last[api.ErrorMessage](cConn, api.Error); e == nil || e.Code != api.NoWorkersAvailable {
		t.Errorf("unexpected error: %+v", e)
	}
	if c.state != Disconnected || !cConn.closed {
		t.Error("session should be torn down")
	}
}

func TestRelayIsVerbatim(t *testing.T) {
	th := newTestHub()
	_, wConn := th.connectWorker("g1")
	_, cConn := th.connectClient("u1")
	th.send(cConn, queueMsg("g1", 0))
	th.matchTick(th.clock)

	offer := []byte(`{"type":"offer","sdp":"v=0 whatever","extra":{"k":1}}`)
	th.HandleWorkerData(wConn, offer)
	if !bytes.Equal(cConn.sent[len(cConn.sent)-1], offer) {
		t.Error("offer was not relayed byte for byte")
	}

	answer := []byte(`{"type":"answer","sdp":"v=0 reply"}`)
	th.HandleClientData(cConn, answer)
	if !bytes.Equal(wConn.sent[len(wConn.sent)-1], answer) {
		t.Error("answer was not relayed byte for byte")
	}

	ice := []byte(`{"type":"ice-candidate","candidate":"candidate:1 1 udp"}`)
	th.HandleClientData(cConn, ice)
	if !bytes.Equal(wConn.sent[len(wConn.sent)-1], ice) {
		t.Error("ice candidate was not relayed byte for byte")
	}
}

func TestUnpairedNegotiationIsDropped(t *testing.T) {
	th := newTestHub()
	_, cConn := th.connectClient("u1")
	before := len(cConn.sent)
	th.HandleClientData(cConn, []byte(`{"type":"answer","sdp":"v=0"}`))
	if len(cConn.sent) != before {
		t.Error("unpaired relay produced traffic")
	}
}

func TestDuplicateUserGuards(t *testing.T) {
	th := newTestHub()
	_, firstConn := th.connectClient("u1")
	th.send(firstConn, queueMsg("g1", 0))

	_, secondConn := th.connectClient("u1")
	th.send(secondConn, queueMsg("g1", 0))
	if e := last[api.ErrorMessage](secondConn, api.Error); e == nil || e.Code != api.AlreadyInQueue {
		t.Errorf("unexpected error: %+v", e)
	}

	th.connectWorker("g1")
	th.matchTick(th.clock)

	_, thirdConn := th.connectClient("u1")
	th.send(thirdConn, queueMsg("g1", 0))
	if e := last[api.ErrorMessage](thirdConn, api.Error); e == nil || e.Code != api.AlreadyInGame {
		t.Errorf("unexpected error: %+v", e)
	}
}

func TestQueueValidation(t *testing.T) {
	th := newTestHub()
	c, cConn := th.connectClient("u1")
	th.send(cConn, map[string]any{"type": api.Queue})
	if e := last[api.ErrorMessage](cConn, api.Error); e == nil || e.Code != api.InvalidRequest {
		t.Errorf("unexpected error: %+v", e)
	}
	if c.state != Waiting {
		t.Errorf("invalid queue request changed state: %v", c.state)
	}
}

func TestFreeAccessVideoClamp(t *testing.T) {
	th := newTestHub()
	conn := &fakeConn{}
	c := th.ConnectClient(conn, auth.User{Id: "u1", Access: auth.Free})
	th.send(conn, queueMsg("g1", 1080))
	if c.videoSize != 360 {
		t.Errorf("free client video size %v (want 360)", c.videoSize)
	}

	paid, paidConn := th.connectClient("u2")
	th.send(paidConn, queueMsg("g1", 1080))
	if paid.videoSize != 1080 {
		t.Errorf("paid client video size %v (want 1080)", paid.videoSize)
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	th := newTestHub()
	c, cConn := th.connectClient("u1")
	th.DisconnectClient(c, "first")
	th.DisconnectClient(c, "second")

	if cConn.count(api.Shutdown) != 1 {
		t.Errorf("shutdown sent %v times (want 1)", cConn.count(api.Shutdown))
	}
	if th.registry.ClientCount() != 0 {
		t.Error("client still registered")
	}
}

func TestClientDisconnectTearsDownWorker(t *testing.T) {
	th := newTestHub()
	_, wConn := th.connectWorker("g1")
	c, cConn := th.connectClient("u1")
	th.send(cConn, queueMsg("g1", 0))
	th.matchTick(th.clock)

	th.DisconnectClient(c, "connection_closed")

	if !wConn.has(api.ClientDisconnected) {
		t.Error("worker was not told its client left")
	}
	if !wConn.has(api.Shutdown) || !wConn.closed {
		t.Error("worker was not torn down")
	}
	if th.registry.WorkerCount() != 0 || th.registry.ClientCount() != 0 {
		t.Error("registry not empty after cascade")
	}
}

func TestWorkerDisconnectNotifiesClient(t *testing.T) {
	th := newTestHub()
	w, _ := th.connectWorker("g1")
	_, cConn := th.connectClient("u1")
	th.send(cConn, queueMsg("g1", 0))
	th.matchTick(th.clock)

	th.DisconnectWorker(w, "connection_closed")

	if !cConn.has(api.WorkerDisconnected) {
		t.Error("client was not told its worker left")
	}
	if !cConn.closed {
		t.Error("client session survived the cascade")
	}
}

func TestWorkerCrashReachesClient(t *testing.T) {
	th := newTestHub()
	_, wConn := th.connectWorker("g1")
	_, cConn := th.connectClient("u1")
	th.send(cConn, queueMsg("g1", 0))
	th.matchTick(th.clock)

	th.send(wConn, map[string]any{"type": api.WorkerCrashed, "reason": "emulator died"})

	e := last[api.ErrorMessage](cConn, api.Error)
	if e == nil || e.Code != api.CrashedWorker || e.Message != "emulator died" {
		t.Errorf("unexpected crash report: %+v", e)
	}
	if !wConn.closed || !cConn.closed {
		t.Error("crash should tear both sides down")
	}
}

func TestDisconnectedClientIsNeverMatched(t *testing.T) {
	th := newTestHub()
	c, cConn := th.connectClient("u1")
	th.send(cConn, queueMsg("g1", 0))
	th.DisconnectClient(c, "connection_closed")

	_, wConn := th.connectWorker("g1")
	th.matchTick(th.clock)

	if w := th.registry.WorkerByConn(wConn); w.status != Available {
		t.Error("worker was paired to a dead client")
	}
	if cConn.has(api.QueueReady) {
		t.Error("dead client got queue-ready")
	}
}

func TestRequeueReleasesWorker(t *testing.T) {
	th := newTestHub()
	_, wConn := th.connectWorker("g1")
	c, cConn := th.connectClient("u1")
	th.send(cConn, queueMsg("g1", 0))
	th.matchTick(th.clock)

	th.send(cConn, queueMsg("g2", 0))

	if c.state != Queued || c.game != "g2" {
		t.Errorf("unexpected state after requeue: %v %v", c.state, c.game)
	}
	if c.worker != nil {
		t.Error("requeued client still holds a worker")
	}
	if !wConn.closed {
		t.Error("abandoned worker was not torn down")
	}
	if cConn.closed {
		t.Error("requeued client must stay connected")
	}
}

func TestQueueTimeout(t *testing.T) {
	th := newTestHub()
	c, cConn := th.connectClient("u1")
	th.send(cConn, queueMsg("g1", 0))

	th.advance(5*time.Minute + time.Second)
	th.matchTick(th.clock)

	if e := last[api.ErrorMessage](cConn, api.Error); e == nil || e.Code != api.NoWorkersAvailable {
		t.Errorf("unexpected error: %+v", e)
	}
	if c.state != Disconnected || th.queue.Len() != 0 {
		t.Error("expired client not evicted")
	}
}

func TestHeartbeatEvictsSilentSessions(t *testing.T) {
	th := newTestHub()
	_, wConn := th.connectWorker("g1")
	c, cConn := th.connectClient("u1")

	// one side keeps answering pings, the other goes silent
	th.advance(6 * time.Second)
	th.send(cConn, map[string]any{"type": api.Pong})
	th.advance(6 * time.Second)
	th.heartbeatTick(th.clock)

	if !wConn.closed {
		t.Error("silent worker survived the sweep")
	}
	if c.closed {
		t.Error("live client was evicted")
	}
	if !cConn.has(api.Ping) {
		t.Error("sweep did not ping the client")
	}
}

func TestConnectingTimeout(t *testing.T) {
	th := newTestHub()
	_, wConn := th.connectWorker("g1")
	c, cConn := th.connectClient("u1")
	th.send(cConn, queueMsg("g1", 0))
	th.matchTick(th.clock)

	th.advance(31 * time.Second)
	// keep liveness fresh so only the connecting deadline can fire
	th.send(cConn, map[string]any{"type": api.Pong})
	th.send(wConn, map[string]any{"type": api.Pong})
	th.heartbeatTick(th.clock)

	if e := last[api.ErrorMessage](cConn, api.Error); e == nil || e.Code != api.ConnectionTimeout {
		t.Errorf("unexpected error: %+v", e)
	}
	if c.state != Disconnected || !wConn.closed {
		t.Error("stalled pairing not torn down")
	}
}

func TestInputTimeout(t *testing.T) {
	th := newTestHub()
	_, wConn := th.connectWorker("g1")
	c, cConn := th.connectClient("u1")
	th.send(cConn, queueMsg("g1", 0))
	th.matchTick(th.clock)
	th.send(cConn, map[string]any{"type": api.Start})

	// pongs keep the connection alive but carry no gameplay input
	th.advance(3*time.Minute + time.Second)
	th.send(cConn, map[string]any{"type": api.Pong})
	th.send(wConn, map[string]any{"type": api.Pong})
	th.heartbeatTick(th.clock)

	if e := last[api.ErrorMessage](cConn, api.Error); e == nil || e.Code != api.SessionTimeout {
		t.Errorf("unexpected error: %+v", e)
	}
	if c.state != Disconnected {
		t.Error("idle session survived")
	}
}

func TestClientInputRefreshesDeadline(t *testing.T) {
	th := newTestHub()
	_, wConn := th.connectWorker("g1")
	c, cConn := th.connectClient("u1")
	th.send(cConn, queueMsg("g1", 0))
	th.matchTick(th.clock)
	th.send(cConn, map[string]any{"type": api.Start})

	th.advance(2 * time.Minute)
	th.send(cConn, map[string]any{"type": api.ClientInput, "data": "tap"})
	th.advance(2 * time.Minute)
	th.send(cConn, map[string]any{"type": api.Pong})
	th.send(wConn, map[string]any{"type": api.Pong})
	th.heartbeatTick(th.clock)

	if c.state != Connected {
		t.Errorf("active session was evicted: %v", c.state)
	}
}

func TestSessionTimeLimit(t *testing.T) {
	th := newTestHub()
	_, wConn := th.connectWorker("g1")
	c, cConn := th.connectClient("u1")
	th.send(cConn, queueMsg("g1", 0))
	th.matchTick(th.clock)
	th.send(cConn, map[string]any{"type": api.Start})

	// stay fully alive for over an hour
	for i := 0; i < 13; i++ {
		th.advance(5 * time.Minute)
		th.send(cConn, map[string]any{"type": api.Pong})
		th.send(cConn, map[string]any{"type": api.ClientInput, "data": "tap"})
		th.send(wConn, map[string]any{"type": api.Pong})
	}
	th.heartbeatTick(th.clock)

	if e := last[api.ErrorMessage](cConn, api.Error); e == nil || e.Code != api.SessionTimeout {
		t.Errorf("unexpected error: %+v", e)
	}
	if c.state != Disconnected {
		t.Error("session outlived its hard limit")
	}
}

func TestRegisterValidation(t *testing.T) {
	th := newTestHub()
	conn := &fakeConn{}
	th.ConnectWorker(conn)
	th.HandleWorkerData(conn, []byte(`{"type":"register","games":[]}`))

	if !conn.closed {
		t.Error("worker with an empty catalog was admitted")
	}
	if th.registry.WorkerCount() != 0 {
		t.Error("invalid worker reached the registry")
	}
}

func TestUnknownMessagesAreDiscarded(t *testing.T) {
	th := newTestHub()
	c, cConn := th.connectClient("u1")
	before := len(cConn.sent)
	th.HandleClientData(cConn, []byte(`{"type":"telemetry","fps":60}`))
	th.HandleClientData(cConn, []byte(`not json at all`))

	if len(cConn.sent) != before {
		t.Error("unknown message produced a reply")
	}
	if c.closed {
		t.Error("unknown message killed the session")
	}
}

func TestShutdownDisconnectsEveryone(t *testing.T) {
	th := newTestHub()
	_, wConn := th.connectWorker("g1")
	unregConn := &fakeConn{}
	th.ConnectWorker(unregConn)
	_, cConn := th.connectClient("u1")

	if err := th.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}

	for _, conn := range []*fakeConn{wConn, unregConn, cConn} {
		if !conn.has(api.Shutdown) || !conn.closed {
			t.Error("a session survived shutdown")
		}
	}
	if th.registry.ClientCount() != 0 || th.registry.WorkerCount() != 0 {
		t.Error("registry not empty after shutdown")
	}
}

func TestStatsSnapshot(t *testing.T) {
	th := newTestHub()
	th.connectWorker("g1")
	_, cConn := th.connectClient("u1")
	th.send(cConn, queueMsg("g1", 0))
	th.connectClient("u2")

	s := th.Stats()

	if s.Summary.Workers.Total != 1 || s.Summary.Workers.Available != 1 {
		t.Errorf("unexpected worker summary: %+v", s.Summary.Workers)
	}
	if s.Summary.Clients.Total != 2 || s.Summary.Clients.ByState["queued"] != 1 {
		t.Errorf("unexpected client summary: %+v", s.Summary.Clients)
	}
	if s.Summary.Queue.Length != 1 || len(s.Queue.ClientIds) != 1 {
		t.Errorf("unexpected queue stat: %+v", s.Queue)
	}
}
