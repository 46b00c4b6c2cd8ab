package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wricardo/volley-relay/relay/bridge"
	"github.com/wricardo/volley-relay/relay/match"
	"github.com/wricardo/volley-relay/relay/protocol"
)

// Resolver completes correlated requests from scoreboard responses
type Resolver interface {
	Resolve(requestID string, out bridge.Outcome) error
}

// Options tune hub behavior
type Options struct {
	// RetainSnapshots keeps a match snapshot after its room empties
	RetainSnapshots bool

	// MaxMessageSize is the largest inbound frame accepted
	MaxMessageSize int64

	// TrustForwardedFor takes the client address from X-Forwarded-For
	TrustForwardedFor bool

	// CheckOrigin validates the Origin header of upgrade requests; nil
	// accepts every origin
	CheckOrigin func(r *http.Request) bool
}

// Stats are point-in-time counters of the hub
type Stats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
}

// ConnectionsReport is the operator view of connected tablets and displays
type ConnectionsReport struct {
	Clients []ConnectionInfo `json:"clients"`
	ByRole  map[string]int   `json:"byRole"`
	Rooms   map[string]int   `json:"rooms"`
}

type inbound struct {
	client *Client
	data   []byte
}

// Hub owns every connection, room and the message router.
// All state is touched only by the goroutine running Run; other goroutines
// reach it through channels.
type Hub struct {
	store    *match.Store
	resolver Resolver
	opts     Options
	upgrader websocket.Upgrader

	registry *Registry
	rooms    *Rooms

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Frames read from clients, in per-client arrival order
	inbound chan inbound

	// Work submitted by other goroutines to run on the hub goroutine
	calls chan func()

	done     chan struct{}
	stopOnce sync.Once
}

// NewHub creates a hub storing snapshots in store
func NewHub(store *match.Store, opts Options) *Hub {
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = 1 << 20
	}
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}

	return &Hub{
		store: store,
		opts:  opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		registry:   NewRegistry(),
		rooms:      NewRooms(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound, 64),
		calls:      make(chan func()),
		done:       make(chan struct{}),
	}
}

// SetResolver attaches the correlation bridge. Call before Run.
func (h *Hub) SetResolver(r Resolver) {
	h.resolver = r
}

// Run starts the hub's event loop and returns when ctx is done. Every open
// connection is closed on the way out.
func (h *Hub) Run(ctx context.Context) {
	defer h.stop()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.closeClient(client, "disconnect")

		case in := <-h.inbound:
			h.handleMessage(in.client, in.data)

		case fn := <-h.calls:
			fn()

		case <-ctx.Done():
			for _, client := range h.registry.All() {
				h.closeClient(client, "shutdown")
			}
			return
		}
	}
}

func (h *Hub) stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// exec runs fn on the hub goroutine and waits for it. It reports false if
// the hub has stopped.
func (h *Hub) exec(fn func()) bool {
	finished := make(chan struct{})
	select {
	case h.calls <- func() { fn(); close(finished) }:
	case <-h.done:
		return false
	}
	select {
	case <-finished:
		return true
	case <-h.done:
		return false
	}
}

// ServeWS upgrades r to a WebSocket and attaches it to the hub
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := newClient(h, conn, uuid.New().String(), clientAddr(r, h.opts.TrustForwardedFor))

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// Stats returns connection and room counts
func (h *Hub) Stats() Stats {
	var s Stats
	h.exec(func() {
		s = Stats{Connections: h.registry.Len(), Rooms: h.rooms.Len()}
	})
	return s
}

// Connections lists every client whose role is not exclude, with role
// counts and room sizes
func (h *Hub) Connections(exclude protocol.Role) ConnectionsReport {
	report := ConnectionsReport{
		Clients: []ConnectionInfo{},
		ByRole:  map[string]int{},
		Rooms:   map[string]int{},
	}
	h.exec(func() {
		for _, c := range h.registry.ListByRole("", exclude) {
			report.Clients = append(report.Clients, c.Info())
			report.ByRole[string(c.role)]++
		}
		report.Rooms = h.rooms.Sizes()
	})
	return report
}

// BroadcastAll delivers data to every open connection and returns how many
// received it. Safe to call from any goroutine.
func (h *Hub) BroadcastAll(data []byte) int {
	delivered := 0
	h.exec(func() {
		delivered = h.broadcastAll(data)
	})
	return delivered
}

// Reap closes connections whose transport died without a close event
// reaching the hub, and returns how many it closed
func (h *Hub) Reap() int {
	reaped := 0
	h.exec(func() {
		for _, c := range h.registry.All() {
			if c.isClosed() {
				h.closeClient(c, "reaped")
				reaped++
			}
		}
	})
	return reaped
}

// registerClient adds a client to the registry and greets it
func (h *Hub) registerClient(client *Client) {
	h.registry.Register(client)
	h.reply(client, protocol.Connected(client.id))

	slog.Info("client connected", "clientId", client.id, "remoteAddr", client.remoteAddr, "clients", h.registry.Len())
}

// closeClient runs the close sequence once per client: leave its room,
// drop it from the registry, and stop its writer
func (h *Hub) closeClient(client *Client, reason string) {
	if _, ok := h.registry.Get(client.id); !ok {
		return
	}

	h.leave(client, false)
	h.registry.Unregister(client.id)
	client.markClosed()
	close(client.send)

	slog.Info("client disconnected", "clientId", client.id, "reason", reason, "clients", h.registry.Len())
}

// join moves client into the room of matchID
func (h *Hub) join(client *Client, matchID string, role protocol.Role, team protocol.Team) {
	if client.matchID == matchID {
		client.role, client.team = role, team
		h.reply(client, protocol.JoinedMatch(matchID, role, team, h.rooms.Size(matchID)))
		return
	}
	if client.matchID != "" {
		h.leave(client, false)
	}

	size := h.rooms.Add(matchID, client.id)
	client.matchID, client.role, client.team = matchID, role, team

	h.broadcast(matchID, protocol.ClientJoined(matchID, client.id, role, team, size), client.id)
	h.reply(client, protocol.JoinedMatch(matchID, role, team, size))

	if snap, err := h.store.Get(matchID); err == nil {
		h.reply(client, protocol.MatchData(snap))
	}

	slog.Info("client joined match", "clientId", client.id, "matchId", matchID, "role", role, "team", team, "clients", size)
}

// leave takes client out of its room. It reports whether the client was in
// one.
func (h *Hub) leave(client *Client, ack bool) bool {
	if client.matchID == "" {
		return false
	}

	matchID, role := client.matchID, client.role
	size, emptied := h.rooms.Remove(matchID, client.id)
	client.matchID, client.role, client.team = "", protocol.RoleUnknown, protocol.TeamNone

	if ack {
		h.reply(client, protocol.LeftMatch(matchID))
	}
	slog.Info("client left match", "clientId", client.id, "matchId", matchID, "clients", size)

	if emptied {
		slog.Info("room removed", "matchId", matchID)
		if !h.opts.RetainSnapshots && h.store.Delete(matchID) {
			slog.Info("match snapshot discarded", "matchId", matchID)
		}
		return true
	}

	h.broadcast(matchID, protocol.ClientLeft(matchID, client.id, role, size), client.id)
	return true
}

// dissolve deletes the room of matchID and returns its members to the
// unassigned state
func (h *Hub) dissolve(matchID string) {
	for _, id := range h.rooms.Dissolve(matchID) {
		if c, ok := h.registry.Get(id); ok {
			c.matchID, c.role, c.team = "", protocol.RoleUnknown, protocol.TeamNone
		}
	}
}

// broadcast encodes out once and delivers it to the room of matchID,
// skipping exclude
func (h *Hub) broadcast(matchID string, out protocol.Outbound, exclude string) int {
	data, err := protocol.Encode(out)
	if err != nil {
		slog.Error("failed to encode broadcast", "type", out.Type, "error", err)
		return 0
	}
	return h.broadcastRaw(matchID, data, exclude)
}

// broadcastRaw delivers data to every open member of the room. A failed
// send is logged and skipped.
func (h *Hub) broadcastRaw(matchID string, data []byte, exclude string) int {
	delivered := 0
	for _, id := range h.rooms.Members(matchID) {
		if id == exclude {
			continue
		}
		client, ok := h.registry.Get(id)
		if !ok || client.isClosed() {
			continue
		}
		if err := client.Send(data); err != nil {
			slog.Warn("broadcast send failed", "clientId", id, "matchId", matchID, "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

func (h *Hub) broadcastAll(data []byte) int {
	delivered := 0
	for _, client := range h.registry.All() {
		if client.isClosed() {
			continue
		}
		if err := client.Send(data); err != nil {
			slog.Warn("broadcast send failed", "clientId", client.id, "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

// reply sends out to client only
func (h *Hub) reply(client *Client, out protocol.Outbound) {
	data, err := protocol.Encode(out)
	if err != nil {
		slog.Error("failed to encode reply", "type", out.Type, "error", err)
		return
	}
	if err := client.Send(data); err != nil {
		slog.Debug("reply dropped", "clientId", client.id, "type", out.Type, "error", err)
	}
}
