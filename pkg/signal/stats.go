package signal

// Operational snapshot for external monitoring: a read-only projection of
// the registry and the queue, not part of the client/worker protocol.

type (
	Snapshot struct {
		Timestamp int64        `json:"timestamp"`
		Summary   Summary      `json:"summary"`
		Workers   []WorkerStat `json:"workers"`
		Clients   []ClientStat `json:"clients"`
		Queue     QueueStat    `json:"queue"`
	}
	Summary struct {
		Workers WorkerCounts `json:"workers"`
		Clients ClientCounts `json:"clients"`
		Queue   struct {
			Length int `json:"length"`
		} `json:"queue"`
	}
	WorkerCounts struct {
		Total     int `json:"total"`
		Available int `json:"available"`
		Busy      int `json:"busy"`
	}
	ClientCounts struct {
		Total        int            `json:"total"`
		ByState      map[string]int `json:"byState"`
		ByAccessType map[string]int `json:"byAccessType"`
	}
	WorkerStat struct {
		Id              string   `json:"id"`
		Status          string   `json:"status"`
		Games           []string `json:"games"`
		ClientId        string   `json:"clientId,omitempty"`
		MsSinceLastPing int64    `json:"msSinceLastPing"`
	}
	ClientStat struct {
		Id               string `json:"id"`
		UserId           string `json:"userId"`
		State            string `json:"connectionState"`
		Game             string `json:"game,omitempty"`
		AccessType       string `json:"accessType"`
		WorkerId         string `json:"workerId,omitempty"`
		QueuePosition    int    `json:"queuePosition,omitempty"`
		QueuedAt         int64  `json:"queuedAt,omitempty"`
		AssignedAt       int64  `json:"assignedAt,omitempty"`
		MsSinceLastPing  int64  `json:"msSinceLastPing"`
		MsSinceLastInput int64  `json:"msSinceLastInput"`
	}
	QueueStat struct {
		ClientIds []string `json:"clientIds"`
	}
)

func (h *Hub) Stats() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	s := Snapshot{Timestamp: now.UnixMilli()}
	s.Clients = []ClientStat{}
	s.Workers = []WorkerStat{}
	s.Summary.Clients.ByState = map[string]int{}
	s.Summary.Clients.ByAccessType = map[string]int{}

	h.registry.EachWorker(func(w *Worker) {
		stat := WorkerStat{
			Id:              w.id.String(),
			Status:          string(w.status),
			Games:           w.games,
			MsSinceLastPing: now.Sub(w.lastPing).Milliseconds(),
		}
		if w.client != nil {
			stat.ClientId = w.client.id.String()
		}
		s.Workers = append(s.Workers, stat)
		s.Summary.Workers.Total++
		if w.status == Available {
			s.Summary.Workers.Available++
		} else {
			s.Summary.Workers.Busy++
		}
	})

	h.registry.EachClient(func(c *Client) {
		stat := ClientStat{
			Id:               c.id.String(),
			UserId:           c.userId,
			State:            string(c.state),
			Game:             c.game,
			AccessType:       string(c.access),
			QueuePosition:    h.queue.Position(c.id),
			MsSinceLastPing:  now.Sub(c.lastPing).Milliseconds(),
			MsSinceLastInput: now.Sub(c.lastInput).Milliseconds(),
		}
		if c.worker != nil {
			stat.WorkerId = c.worker.id.String()
		}
		if !c.queuedAt.IsZero() {
			stat.QueuedAt = c.queuedAt.UnixMilli()
		}
		if !c.assignedAt.IsZero() {
			stat.AssignedAt = c.assignedAt.UnixMilli()
		}
		s.Clients = append(s.Clients, stat)
		s.Summary.Clients.Total++
		s.Summary.Clients.ByState[string(c.state)]++
		s.Summary.Clients.ByAccessType[string(c.access)]++
	})

	s.Summary.Queue.Length = h.queue.Len()
	ids := h.queue.Snapshot()
	s.Queue.ClientIds = make([]string, len(ids))
	for i, id := range ids {
		s.Queue.ClientIds[i] = id.String()
	}
	return s
}
