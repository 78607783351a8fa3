package signal

import "github.com/droidstream/signal/pkg/api"

// handleWorkerMessage runs under the hub lock.
func (h *Hub) handleWorkerMessage(w *Worker, in api.In) {
	switch in.T {
	case api.Pong:
	case api.Register:
		h.handleRegister(w, api.Unwrap[api.RegisterRequest](in.Raw))
	case api.Offer, api.IceCandidate, api.Error:
		// negotiation payloads and peer-scoped errors pass through
		// untouched, keyed purely by the pairing
		if w.client != nil {
			w.client.Relay(in.Raw)
		}
	case api.WorkerCrashed:
		h.handleWorkerCrashed(w, api.Unwrap[api.CrashReport](in.Raw))
	default:
		w.log.Debug().Msgf("Discarding unknown message %q", in.T)
	}
}

func (h *Hub) handleRegister(w *Worker, rq *api.RegisterRequest) {
	if rq == nil || len(rq.Games) == 0 {
		w.log.Error().Msg("Invalid games list in registration")
		h.disconnectWorker(w, "invalid_games")
		return
	}
	w.games = rq.Games
	if w.client == nil {
		w.status = Available
	}
	if !w.registered {
		w.registered = true
		h.registry.RegisterWorker(w)
	}
	w.log.Info().Msgf("Worker registered with games: %v", w.games)
}

// handleWorkerCrashed reports the self-declared fatal condition to the
// paired client, then tears the worker down immediately.
func (h *Hub) handleWorkerCrashed(w *Worker, rq *api.CrashReport) {
	reason := "unknown"
	if rq != nil && rq.Reason != "" {
		reason = rq.Reason
	}
	w.log.Warn().Msgf("Worker crashed: %v", reason)
	if w.client != nil {
		w.client.SendError(api.CrashedWorker, reason)
	}
	h.disconnectWorker(w, "crashed")
}
