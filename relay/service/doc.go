// Package service provides the HTTP-facing operations of the match relay.
//
// The service package implements:
//   - PIN validation for referee and bench tablets
//   - Public match listings
//   - Snapshot lookups by match id and game number
//   - Match updates forwarded to the scoreboard
//   - Server status and connection diagnostics
//
// Core Interfaces:
//
// MatchService is the main service interface used by the REST API and the
// MCP tools. Hub supplies live connection counts. Correlator asks the
// scoreboard for answers the relay does not hold.
//
// Architecture:
//
// The service layer sits between the transports (HTTP and MCP) and the relay
// core. Lookups are served from the match store first; on a miss the request
// is broadcast to every connected scoreboard through the correlation bridge
// and the first answer wins. With the bridge disabled a miss is reported as
// not found immediately.
//
// Usage:
//
//	store := match.NewStore()
//	hub := websocket.NewHub(store, websocket.Options{})
//	b := bridge.New(hub, 5*time.Second)
//	svc := service.NewMatchService(store, hub, b, service.Options{Mode: "local"})
//
//	result, err := svc.ValidatePin(ctx, "123456", "referee")
//	if errors.Is(err, service.ErrNotFound) {
//		// ask the user to check that the scoreboard is running
//	}
package service
