package protocol

import (
	"encoding/json"
	"time"

	"github.com/wricardo/volley-relay/relay/match"
)

// Outbound is the envelope of every frame the relay sends.
// Unused fields are omitted.
type Outbound struct {
	Type        string          `json:"type"`
	MatchID     string          `json:"matchId,omitempty"`
	ClientID    string          `json:"clientId,omitempty"`
	Role        Role            `json:"role,omitempty"`
	Team        Team            `json:"team,omitempty"`
	ClientCount *int            `json:"clientCount,omitempty"`
	Data        interface{}     `json:"data,omitempty"`
	Action      json.RawMessage `json:"action,omitempty"`
	From        string          `json:"from,omitempty"`
	Deleted     *int            `json:"deleted,omitempty"`
	Error       string          `json:"error,omitempty"`
	RequestType string          `json:"requestType,omitempty"`
	Timestamp   int64           `json:"timestamp"`
}

// Encode marshals an outbound frame, stamping it with the current time if
// no timestamp was set
func Encode(out Outbound) ([]byte, error) {
	if out.Timestamp == 0 {
		out.Timestamp = time.Now().UnixMilli()
	}
	return json.Marshal(out)
}

func count(n int) *int {
	return &n
}

// Connected greets a new connection with its assigned ID
func Connected(clientID string) Outbound {
	return Outbound{Type: TypeConnected, ClientID: clientID}
}

// JoinedMatch acknowledges a join to the joining connection
func JoinedMatch(matchID string, role Role, team Team, size int) Outbound {
	return Outbound{Type: TypeJoinedMatch, MatchID: matchID, Role: role, Team: team, ClientCount: count(size)}
}

// LeftMatch acknowledges a leave to the leaving connection
func LeftMatch(matchID string) Outbound {
	return Outbound{Type: TypeLeftMatch, MatchID: matchID}
}

// ClientJoined tells a room about a new member
func ClientJoined(matchID, clientID string, role Role, team Team, size int) Outbound {
	return Outbound{Type: TypeClientJoined, MatchID: matchID, ClientID: clientID, Role: role, Team: team, ClientCount: count(size)}
}

// ClientLeft tells a room that a member left
func ClientLeft(matchID, clientID string, role Role, size int) Outbound {
	return Outbound{Type: TypeClientLeft, MatchID: matchID, ClientID: clientID, Role: role, ClientCount: count(size)}
}

// MatchData delivers the stored snapshot to a joining connection
func MatchData(snap *match.Snapshot) Outbound {
	return Outbound{Type: TypeMatchData, MatchID: snap.MatchID, Data: snap}
}

// MatchUpdate fans a fresh snapshot out to a room
func MatchUpdate(snap *match.Snapshot) Outbound {
	return Outbound{Type: TypeMatchUpdate, MatchID: snap.MatchID, Data: snap, From: snap.UpdatedBy}
}

// MatchAction relays a scoring action to a room
func MatchAction(matchID, from string, action json.RawMessage) Outbound {
	return Outbound{Type: TypeMatchAction, MatchID: matchID, Action: action, From: from}
}

// MatchDeleted tells a room, and the sender, that its match was removed
func MatchDeleted(matchID, from string) Outbound {
	return Outbound{Type: TypeMatchDeleted, MatchID: matchID, From: from}
}

// MatchesCleared acknowledges a clear-all with the number removed
func MatchesCleared(keepMatchID string, deleted int) Outbound {
	return Outbound{Type: TypeMatchesCleared, MatchID: keepMatchID, Deleted: count(deleted)}
}

// Pong answers a heartbeat, echoing the client's timestamp when given
func Pong(timestamp int64) Outbound {
	return Outbound{Type: TypePong, Timestamp: timestamp}
}

// Error reports a rejected frame to its sender only
func Error(requestType, reason string) Outbound {
	return Outbound{Type: TypeError, RequestType: requestType, Error: reason}
}

// Request is a correlated question broadcast to scoreboards
type Request struct {
	Type      string      `json:"type"`
	RequestID string      `json:"requestId"`
	Kind      RequestKind `json:"kind"`
	MatchID   string      `json:"matchId,omitempty"`
	Pin       string      `json:"pin,omitempty"`
	PinType   string      `json:"pinType,omitempty"`
	GameN     string      `json:"gameNumber,omitempty"`
	Updates   interface{} `json:"updates,omitempty"`
	Timestamp int64       `json:"timestamp"`
}
