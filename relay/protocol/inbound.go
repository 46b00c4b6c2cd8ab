package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/wricardo/volley-relay/relay/match"
)

// ErrMalformed is returned for frames that are not a JSON object with a type
var ErrMalformed = errors.New("malformed message")

// ValidationError reports a well-formed message that lacks a required field
type ValidationError struct {
	Type  string
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is required for %s", e.Field, e.Type)
}

// Message is one decoded inbound frame
type Message interface {
	// Type returns the canonical message type
	Type() string
}

// Join asks to enter the room of a match
type Join struct {
	MatchID string
	Role    Role
	Team    Team
}

// Leave asks to leave the current room
type Leave struct {
	MatchID string
}

// Sync carries a full snapshot from the scoreboard
type Sync struct {
	MatchID  string
	Snapshot match.Snapshot
}

// Action carries a scoring action to relay to the room as-is
type Action struct {
	MatchID string
	Action  json.RawMessage
}

// Delete drops the snapshot and room of a match
type Delete struct {
	MatchID string
}

// ClearAll drops every snapshot except KeepMatchID
type ClearAll struct {
	KeepMatchID string
}

// Heartbeat is a keepalive that is answered with a pong
type Heartbeat struct {
	Timestamp int64
}

// Response answers a correlated request issued by the relay
type Response struct {
	Kind      RequestKind
	RequestID string
	Success   bool
	MatchID   string
	Data      json.RawMessage
	Error     string
}

// Unknown is a frame with an unrecognized type
type Unknown struct {
	Name string
}

func (Join) Type() string      { return TypeJoinMatch }
func (Leave) Type() string     { return TypeLeaveMatch }
func (Sync) Type() string      { return TypeSyncMatchData }
func (Action) Type() string    { return TypeMatchAction }
func (Delete) Type() string    { return TypeDeleteMatch }
func (ClearAll) Type() string  { return TypeClearAllMatches }
func (Heartbeat) Type() string { return TypeHeartbeat }
func (r Response) Type() string {
	return responseTypes[r.Kind]
}
func (u Unknown) Type() string { return u.Name }

// envelope is the union of every field any inbound frame may carry
type envelope struct {
	Type        string           `json:"type"`
	MatchID     match.FlexString `json:"matchId"`
	MatchIDAlt  match.FlexString `json:"match_id"`
	Role        string           `json:"role"`
	ClientType  string           `json:"clientType"`
	Team        string           `json:"team"`
	Action      json.RawMessage  `json:"action"`
	KeepMatchID match.FlexString `json:"keepMatchId"`
	Timestamp   match.FlexString `json:"timestamp"`
	RequestID   string           `json:"requestId"`
	Success     *bool            `json:"success"`
	Error       string           `json:"error"`
	Data        json.RawMessage  `json:"data"`
	MatchData   json.RawMessage  `json:"matchData"`

	syncBody
}

// syncBody is the snapshot layout; it appears either at the top level of a
// sync frame or nested under "data"
type syncBody struct {
	Match      json.RawMessage `json:"match"`
	HomeTeam   json.RawMessage `json:"homeTeam"`
	AwayTeam   json.RawMessage `json:"awayTeam"`
	HomeRoster json.RawMessage `json:"homeRoster"`
	AwayRoster json.RawMessage `json:"awayRoster"`
	Sets       json.RawMessage `json:"sets"`
	Events     json.RawMessage `json:"events"`
	Teams      *pair           `json:"teams"`
	Rosters    *pair           `json:"rosters"`
}

type pair struct {
	Home json.RawMessage `json:"home"`
	Away json.RawMessage `json:"away"`
}

// Decode parses one frame into its typed message.
// It returns ErrMalformed for unparseable frames and a *ValidationError when
// a required field is missing.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	msgType := strings.TrimSpace(env.Type)
	if msgType == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	matchID := match.CanonicalID(env.MatchID.String())
	if matchID == "" {
		matchID = match.CanonicalID(env.MatchIDAlt.String())
	}

	switch canonicalType(msgType) {
	case TypeJoinMatch:
		return decodeJoin(msgType, matchID, &env)

	case TypeLeaveMatch:
		return Leave{MatchID: matchID}, nil

	case TypeSyncMatchData:
		return decodeSync(msgType, matchID, &env)

	case TypeMatchAction:
		if matchID == "" {
			return nil, &ValidationError{Type: msgType, Field: "matchId"}
		}
		if isEmpty(env.Action) {
			return nil, &ValidationError{Type: msgType, Field: "action"}
		}
		return Action{MatchID: matchID, Action: env.Action}, nil

	case TypeDeleteMatch:
		if matchID == "" {
			return nil, &ValidationError{Type: msgType, Field: "matchId"}
		}
		return Delete{MatchID: matchID}, nil

	case TypeClearAllMatches:
		return ClearAll{KeepMatchID: match.CanonicalID(env.KeepMatchID.String())}, nil

	case TypeHeartbeat:
		var ts int64
		fmt.Sscan(env.Timestamp.String(), &ts)
		return Heartbeat{Timestamp: ts}, nil
	}

	if kind, ok := responseKinds[msgType]; ok {
		return decodeResponse(msgType, kind, matchID, &env)
	}

	return Unknown{Name: msgType}, nil
}

func decodeJoin(msgType, matchID string, env *envelope) (Message, error) {
	if matchID == "" {
		return nil, &ValidationError{Type: msgType, Field: "matchId"}
	}

	roleName := env.Role
	if roleName == "" {
		roleName = env.ClientType
	}
	if roleName == "" {
		// subscribe predates roles; its senders are passive displays
		if msgType != TypeJoinMatch {
			roleName = string(RoleSubscriber)
		} else {
			return nil, &ValidationError{Type: msgType, Field: "role"}
		}
	}

	role, team := ParseRole(roleName)
	if t := ParseTeam(env.Team); t != TeamNone {
		team = t
	}
	return Join{MatchID: matchID, Role: role, Team: team}, nil
}

func decodeSync(msgType, matchID string, env *envelope) (Message, error) {
	body := env.syncBody
	if !isEmpty(env.Data) {
		body = syncBody{}
		if err := json.Unmarshal(env.Data, &body); err != nil {
			return nil, fmt.Errorf("%w: data: %v", ErrMalformed, err)
		}
	}

	if matchID == "" {
		matchID = embeddedID(body.Match)
	}
	if matchID == "" {
		return nil, &ValidationError{Type: msgType, Field: "matchId"}
	}
	if isEmpty(body.Match) && isEmpty(env.Data) {
		return nil, &ValidationError{Type: msgType, Field: "data"}
	}

	snap := match.Snapshot{
		Match:      nonNull(body.Match),
		HomeTeam:   nonNull(body.HomeTeam),
		AwayTeam:   nonNull(body.AwayTeam),
		HomeRoster: nonNull(body.HomeRoster),
		AwayRoster: nonNull(body.AwayRoster),
		Sets:       nonNull(body.Sets),
		Events:     nonNull(body.Events),
	}
	if body.Teams != nil {
		snap.HomeTeam = firstNonEmpty(snap.HomeTeam, body.Teams.Home)
		snap.AwayTeam = firstNonEmpty(snap.AwayTeam, body.Teams.Away)
	}
	if body.Rosters != nil {
		snap.HomeRoster = firstNonEmpty(snap.HomeRoster, body.Rosters.Home)
		snap.AwayRoster = firstNonEmpty(snap.AwayRoster, body.Rosters.Away)
	}

	return Sync{MatchID: matchID, Snapshot: snap}, nil
}

func decodeResponse(msgType string, kind RequestKind, matchID string, env *envelope) (Message, error) {
	if strings.TrimSpace(env.RequestID) == "" {
		return nil, &ValidationError{Type: msgType, Field: "requestId"}
	}

	data := firstNonEmpty(nonNull(env.Data), nonNull(env.MatchData), nonNull(env.Match))
	success := env.Error == "" && !isEmpty(data)
	if env.Success != nil {
		success = *env.Success
	}

	return Response{
		Kind:      kind,
		RequestID: strings.TrimSpace(env.RequestID),
		Success:   success,
		MatchID:   matchID,
		Data:      data,
		Error:     env.Error,
	}, nil
}

// embeddedID pulls the match ID out of a match metadata object
func embeddedID(raw json.RawMessage) string {
	if isEmpty(raw) {
		return ""
	}
	var ids struct {
		ID      match.FlexString `json:"id"`
		MatchID match.FlexString `json:"matchId"`
	}
	if err := json.Unmarshal(raw, &ids); err != nil {
		return ""
	}
	if ids.MatchID != "" {
		return match.CanonicalID(ids.MatchID.String())
	}
	return match.CanonicalID(ids.ID.String())
}

func isEmpty(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func nonNull(raw json.RawMessage) json.RawMessage {
	if isEmpty(raw) {
		return nil
	}
	return raw
}

func firstNonEmpty(values ...json.RawMessage) json.RawMessage {
	for _, v := range values {
		if !isEmpty(v) {
			return v
		}
	}
	return nil
}
