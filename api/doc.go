// Package api provides the HTTP REST API of the volleyball match relay.
//
// The api package implements:
//   - Liveness and server status endpoints
//   - PIN validation for referee and bench tablets
//   - Match listings and snapshot lookups
//   - Match updates forwarded to the scoreboard
//   - WebSocket upgrade handling
//   - CORS for browser-based tablets
//
// Endpoints:
//
// Server:
//   - GET / and GET /health - Liveness with connection and room counts
//   - GET /api/server/status - Mode, counters and uptime
//   - GET /api/server/connections - Connected tablets and displays
//
// Matches:
//   - POST /api/match/validate-pin - Find the match a PIN opens
//   - GET /api/match/list - Matches open to referee tablets
//   - GET /api/match/game/{gameNumber} - Lookup by game number
//   - GET /api/match/{id} - Full snapshot lookup
//   - PATCH /api/match/{id} - Forward an update to the scoreboard
//
// WebSocket:
//   - GET /ws - Upgrade to the relay protocol
//
// Request/Response Format:
//
// All endpoints accept and return JSON. PIN validation takes:
//
//	{
//	  "pin": "123456",
//	  "type": "referee|homeTeam|awayTeam"
//	}
//
// Usage:
//
//	server := api.NewServer(matchService, hub, []string{"*"})
//	http.ListenAndServe(":8080", server)
//
// Error Handling:
//
// Every response carries a success flag. Errors are returned with 400 for
// malformed input, 404 for lookups nobody could answer and 500 for failed
// forwarded requests:
//
//	{
//	  "success": false,
//	  "error": "error message"
//	}
package api
