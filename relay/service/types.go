package service

import (
	"time"

	"github.com/wricardo/volley-relay/relay/match"
)

// Source values tell callers where an answer came from
const (
	SourceStore      = "store"
	SourceScoreboard = "scoreboard"
)

// Options configure a MatchService
type Options struct {
	Mode            string
	RetainSnapshots bool
	StartedAt       time.Time
}

// Status describes the running relay
type Status struct {
	Status          string    `json:"status"`
	Mode            string    `json:"mode"`
	Connections     int       `json:"connections"`
	Rooms           int       `json:"rooms"`
	Matches         int       `json:"matches"`
	PendingRequests int       `json:"pendingRequests"`
	BridgeEnabled   bool      `json:"bridgeEnabled"`
	RetainSnapshots bool      `json:"retainSnapshots"`
	StartedAt       time.Time `json:"startedAt"`
	Uptime          string    `json:"uptime"`
	UptimeSeconds   int64     `json:"uptimeSeconds"`
}

// PinResult is the match a PIN opens
type PinResult struct {
	MatchID string      `json:"matchId"`
	PinType string      `json:"pinType"`
	Match   interface{} `json:"match"`
	Source  string      `json:"source"`
}

// MatchSummary is one row of the public match listing
type MatchSummary struct {
	MatchID string `json:"matchId"`
	match.Info
	UpdatedAt time.Time `json:"updatedAt"`
}

// MatchResult carries a match snapshot or the scoreboard's answer about one
type MatchResult struct {
	MatchID string      `json:"matchId"`
	Match   interface{} `json:"match"`
	Source  string      `json:"source"`
}
