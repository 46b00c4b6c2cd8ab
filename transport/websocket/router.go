package websocket

import (
	"errors"
	"log/slog"

	"github.com/wricardo/volley-relay/relay/bridge"
	"github.com/wricardo/volley-relay/relay/protocol"
)

// handleMessage decodes one frame from client and dispatches it.
// Bad input is answered with an error frame to the sender only. Frames still
// queued when their connection closed are dropped.
func (h *Hub) handleMessage(client *Client, data []byte) {
	if _, ok := h.registry.Get(client.id); !ok {
		slog.Debug("frame from closed connection dropped", "clientId", client.id)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("message handler panic", "clientId", client.id, "panic", r)
			h.reply(client, protocol.Error("", "internal error"))
		}
	}()

	msg, err := protocol.Decode(data)
	if err != nil {
		var verr *protocol.ValidationError
		if errors.As(err, &verr) {
			slog.Warn("invalid message", "clientId", client.id, "type", verr.Type, "error", err)
			h.reply(client, protocol.Error(verr.Type, verr.Error()))
			return
		}
		slog.Warn("malformed message", "clientId", client.id, "error", err)
		h.reply(client, protocol.Error("", "invalid message format"))
		return
	}

	switch m := msg.(type) {
	case protocol.Join:
		h.join(client, m.MatchID, m.Role, m.Team)

	case protocol.Leave:
		h.leave(client, true)

	case protocol.Sync:
		h.handleSync(client, m)

	case protocol.Action:
		delivered := h.broadcast(m.MatchID, protocol.MatchAction(m.MatchID, client.id, m.Action), client.id)
		slog.Debug("match action relayed", "clientId", client.id, "matchId", m.MatchID, "delivered", delivered)

	case protocol.Delete:
		h.handleDelete(client, m)

	case protocol.ClearAll:
		deleted := h.store.DeleteAllExcept(m.KeepMatchID)
		h.reply(client, protocol.MatchesCleared(m.KeepMatchID, deleted))
		slog.Info("match snapshots cleared", "clientId", client.id, "kept", m.KeepMatchID, "deleted", deleted)

	case protocol.Heartbeat:
		h.reply(client, protocol.Pong(m.Timestamp))

	case protocol.Response:
		h.handleResponse(client, m)

	default:
		slog.Warn("unknown message type", "clientId", client.id, "type", msg.Type())
	}
}

func (h *Hub) handleSync(client *Client, m protocol.Sync) {
	snap, err := h.store.Upsert(m.MatchID, m.Snapshot, client.id)
	if err != nil {
		h.reply(client, protocol.Error(m.Type(), err.Error()))
		return
	}

	delivered := h.broadcast(m.MatchID, protocol.MatchUpdate(snap), client.id)
	slog.Debug("match synced", "clientId", client.id, "matchId", m.MatchID, "delivered", delivered)
}

func (h *Hub) handleDelete(client *Client, m protocol.Delete) {
	existed := h.store.Delete(m.MatchID)

	out := protocol.MatchDeleted(m.MatchID, client.id)
	h.broadcast(m.MatchID, out, client.id)
	h.dissolve(m.MatchID)
	h.reply(client, out)

	slog.Info("match deleted", "clientId", client.id, "matchId", m.MatchID, "hadSnapshot", existed)
}

func (h *Hub) handleResponse(client *Client, m protocol.Response) {
	if h.resolver == nil {
		slog.Debug("response without bridge", "clientId", client.id, "requestId", m.RequestID)
		return
	}

	err := h.resolver.Resolve(m.RequestID, bridge.Outcome{
		Success: m.Success,
		MatchID: m.MatchID,
		Data:    m.Data,
		Error:   m.Error,
	})
	if err != nil {
		slog.Debug("response not matched", "clientId", client.id, "requestId", m.RequestID, "type", m.Type(), "error", err)
	}
}
