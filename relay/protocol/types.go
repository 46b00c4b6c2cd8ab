package protocol

import "strings"

// Canonical inbound types
const (
	TypeJoinMatch       = "join-match"
	TypeLeaveMatch      = "leave-match"
	TypeSyncMatchData   = "sync-match-data"
	TypeMatchAction     = "match-action"
	TypeDeleteMatch     = "delete-match"
	TypeClearAllMatches = "clear-all-matches"
	TypeHeartbeat       = "heartbeat"
)

// Outbound types
const (
	TypeConnected      = "connected"
	TypeJoinedMatch    = "joined-match"
	TypeLeftMatch      = "left-match"
	TypeClientJoined   = "client-joined"
	TypeClientLeft     = "client-left"
	TypeMatchData      = "match-data"
	TypeMatchUpdate    = "match-update"
	TypeMatchDeleted   = "match-deleted"
	TypeMatchesCleared = "matches-cleared"
	TypePong           = "pong"
	TypeError          = "error"
)

// RequestKind tags a correlated request and its response
type RequestKind string

const (
	KindPinValidation RequestKind = "pin-validation"
	KindMatchData     RequestKind = "match-data"
	KindMatchUpdate   RequestKind = "match-update"
	KindGameNumber    RequestKind = "game-number"
)

// requestTypes are the frames the relay broadcasts to ask the scoreboard
var requestTypes = map[RequestKind]string{
	KindPinValidation: "validate-pin-request",
	KindMatchData:     "get-match-data-request",
	KindMatchUpdate:   "update-match-request",
	KindGameNumber:    "get-game-number-request",
}

// responseTypes are the frames the scoreboard answers with
var responseTypes = map[RequestKind]string{
	KindPinValidation: "pin-validation-response",
	KindMatchData:     "match-data-response",
	KindMatchUpdate:   "match-update-response",
	KindGameNumber:    "game-number-response",
}

var responseKinds = func() map[string]RequestKind {
	m := make(map[string]RequestKind, len(responseTypes))
	for kind, t := range responseTypes {
		m[t] = kind
	}
	return m
}()

// aliases maps every accepted inbound type name onto its canonical type
var aliases = map[string]string{
	"join-match":        TypeJoinMatch,
	"subscribe":         TypeJoinMatch,
	"join":              TypeJoinMatch,
	"leave-match":       TypeLeaveMatch,
	"unsubscribe":       TypeLeaveMatch,
	"leave":             TypeLeaveMatch,
	"sync-match-data":   TypeSyncMatchData,
	"match-update":      TypeSyncMatchData,
	"sync":              TypeSyncMatchData,
	"match-action":      TypeMatchAction,
	"action":            TypeMatchAction,
	"delete-match":      TypeDeleteMatch,
	"clear-all-matches": TypeClearAllMatches,
	"heartbeat":         TypeHeartbeat,
	"ping":              TypeHeartbeat,
}

func canonicalType(t string) string {
	if c, ok := aliases[strings.ToLower(t)]; ok {
		return c
	}
	return t
}

// RequestType returns the broadcast frame type for kind
func RequestType(kind RequestKind) string {
	return requestTypes[kind]
}
