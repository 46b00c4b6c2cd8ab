package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/wricardo/volley-relay/relay/bridge"
	"github.com/wricardo/volley-relay/relay/protocol"
	"github.com/wricardo/volley-relay/transport/websocket"
)

var (
	// ErrInvalidRequest marks malformed caller input
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotFound marks a lookup that neither the store nor a scoreboard
	// could answer
	ErrNotFound = errors.New("not found")

	// ErrRequestFailed marks a forwarded request that did not complete
	ErrRequestFailed = errors.New("request failed")
)

// MatchService defines all relay operations exposed outside the socket layer
type MatchService interface {
	// Server
	Status(ctx context.Context) (*Status, error)
	Connections(ctx context.Context) (*websocket.ConnectionsReport, error)

	// Tablets
	ValidatePin(ctx context.Context, pin, pinType string) (*PinResult, error)

	// Matches
	ListMatches(ctx context.Context) ([]*MatchSummary, error)
	GetMatch(ctx context.Context, matchID string) (*MatchResult, error)
	FindByGameNumber(ctx context.Context, gameNumber string) (*MatchResult, error)
	UpdateMatch(ctx context.Context, matchID string, updates json.RawMessage) (*MatchResult, error)
}

// Hub reports on live connections
type Hub interface {
	Stats() websocket.Stats
	Connections(exclude protocol.Role) websocket.ConnectionsReport
}

// Correlator forwards a request to the scoreboard and waits for its answer
type Correlator interface {
	Correlate(ctx context.Context, kind protocol.RequestKind, req protocol.Request, timeout time.Duration) (bridge.Outcome, error)
	Pending() int
}
