package api

// Worker-originated requests.

type (
	RegisterRequest struct {
		Games []string `json:"games"`
	}
	CrashReport struct {
		Reason string `json:"reason"`
	}
	// ErrorReport is a peer-scoped error a worker asks the broker
	// to forward to its paired client.
	ErrorReport struct {
		Code    Code   `json:"code,omitempty"`
		Message string `json:"message"`
	}
)

// Messages the broker sends to workers.

type (
	// StartMessage instructs a paired worker to begin a session.
	StartMessage struct {
		T            MT          `json:"type"`
		UserId       string      `json:"userId,omitempty"`
		MaxVideoSize int         `json:"maxVideoSize,omitempty"`
		IceServers   []IceServer `json:"iceServers,omitempty"`
	}
	// GameSelectedMessage reveals the chosen game right after start.
	GameSelectedMessage struct {
		T      MT     `json:"type"`
		GameId string `json:"gameId"`
	}
	ClientDisconnectedMessage struct {
		T MT `json:"type"`
	}
)

func NewStart(userId string, maxVideoSize int, ice []IceServer) StartMessage {
	return StartMessage{T: Start, UserId: userId, MaxVideoSize: maxVideoSize, IceServers: ice}
}

func NewGameSelected(gameId string) GameSelectedMessage {
	return GameSelectedMessage{T: GameSelected, GameId: gameId}
}

func NewClientDisconnected() ClientDisconnectedMessage {
	return ClientDisconnectedMessage{T: ClientDisconnected}
}
