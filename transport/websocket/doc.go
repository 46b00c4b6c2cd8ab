// Package websocket provides the real-time relay between scoreboards and the
// tablets and displays following a match.
//
// The websocket package implements:
//   - Registry: every live connection with its role, team and match
//   - Rooms: connections grouped by match ID, created on first join and
//     deleted the moment they empty
//   - Broadcast to a room, optionally excluding the sender
//   - Message routing for joins, leaves, snapshot syncs, scoring actions,
//     deletes, heartbeats and correlated-request responses
//   - Connection lifecycle management and periodic reaping of dead transports
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub owns all
// connection, room and routing state. A single goroutine running Hub.Run
// processes registrations, inbound frames and submitted work one at a time,
// so handlers never race. Each client has a reader goroutine feeding frames
// to the hub in arrival order and a writer goroutine draining its send queue.
//
// Message Protocol:
//
// Frames are JSON objects with a "type" field; see package protocol.
//
//   - Incoming: {"type":"join-match","matchId":"100","role":"referee"}
//   - Outgoing: {"type":"joined-match","matchId":"100","clientCount":2,...}
//
// Usage:
//
//	hub := websocket.NewHub(store, websocket.Options{})
//	go hub.Run(ctx)
//	http.HandleFunc("/ws", hub.ServeWS)
//
// Connection Lifecycle:
//
// 1. Client connects and receives {"type":"connected","clientId":...}
// 2. Client joins a match room with a role
// 3. Client sends syncs/actions, receives the room's traffic
// 4. Disconnection leaves the room and unregisters the client exactly once
//
// Snapshot Retention:
//
// When the last member leaves a room the room is deleted. Unless
// Options.RetainSnapshots is set, the match snapshot is deleted with it.
package websocket
