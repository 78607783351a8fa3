package api

// Client-originated requests.

type QueueRequest struct {
	AppId        string `json:"appId"`
	MaxVideoSize int    `json:"maxVideoSize,omitempty"`
}

// Messages the broker sends to clients.

type (
	PingMessage struct {
		T MT `json:"type"`
	}
	AuthenticatedMessage struct {
		T MT `json:"type"`
	}
	QueueInfoMessage struct {
		T        MT  `json:"type"`
		Position int `json:"position"`
		Total    int `json:"total"`
	}
	QueueReadyMessage struct {
		T          MT          `json:"type"`
		IceServers []IceServer `json:"iceServers,omitempty"`
	}
	ErrorMessage struct {
		T       MT     `json:"type"`
		Code    Code   `json:"code,omitempty"`
		Message string `json:"message"`
	}
	ShutdownMessage struct {
		T      MT     `json:"type"`
		Reason string `json:"reason"`
	}
	WorkerDisconnectedMessage struct {
		T MT `json:"type"`
	}
)

func NewPing() PingMessage                   { return PingMessage{T: Ping} }
func NewAuthenticated() AuthenticatedMessage { return AuthenticatedMessage{T: Authenticated} }

func NewQueueInfo(position, total int) QueueInfoMessage {
	return QueueInfoMessage{T: QueueInfo, Position: position, Total: total}
}

func NewQueueReady(ice []IceServer) QueueReadyMessage {
	return QueueReadyMessage{T: QueueReady, IceServers: ice}
}

func NewError(code Code, message string) ErrorMessage {
	return ErrorMessage{T: Error, Code: code, Message: message}
}

func NewShutdown(reason string) ShutdownMessage {
	return ShutdownMessage{T: Shutdown, Reason: reason}
}

func NewWorkerDisconnected() WorkerDisconnectedMessage {
	return WorkerDisconnectedMessage{T: WorkerDisconnected}
}
