package match

import (
	"encoding/json"
	"strings"
	"time"
)

// StatusFinal marks a match that has been completed and signed off
const StatusFinal = "final"

// PinLength is the exact length of a referee or bench PIN
const PinLength = 6

// PinType selects which PIN of a match a caller presents
type PinType string

const (
	PinReferee  PinType = "referee"
	PinHomeTeam PinType = "homeTeam"
	PinAwayTeam PinType = "awayTeam"
)

// ParsePinType maps request values onto a PinType
func ParsePinType(s string) (PinType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "referee", "ref":
		return PinReferee, true
	case "hometeam", "home":
		return PinHomeTeam, true
	case "awayteam", "away":
		return PinAwayTeam, true
	}
	return "", false
}

// Info is the subset of match metadata the relay itself reads.
// The full metadata object is kept untouched in Snapshot.Match.
type Info struct {
	ID                        string `json:"id,omitempty"`
	Status                    string `json:"status,omitempty"`
	GameNumber                string `json:"gameNumber,omitempty"`
	ScheduledAt               string `json:"scheduledAt,omitempty"`
	Court                     string `json:"court,omitempty"`
	RefereePin                string `json:"-"`
	HomeTeamPin               string `json:"-"`
	AwayTeamPin               string `json:"-"`
	RefereeConnectionEnabled  bool   `json:"refereeConnectionEnabled"`
	HomeTeamConnectionEnabled bool   `json:"homeTeamConnectionEnabled"`
	AwayTeamConnectionEnabled bool   `json:"awayTeamConnectionEnabled"`
}

// Snapshot is the authoritative state of one match
type Snapshot struct {
	MatchID    string          `json:"matchId"`
	Match      json.RawMessage `json:"match,omitempty"`
	HomeTeam   json.RawMessage `json:"homeTeam,omitempty"`
	AwayTeam   json.RawMessage `json:"awayTeam,omitempty"`
	HomeRoster json.RawMessage `json:"homeRoster,omitempty"`
	AwayRoster json.RawMessage `json:"awayRoster,omitempty"`
	Sets       json.RawMessage `json:"sets,omitempty"`
	Events     json.RawMessage `json:"events,omitempty"`
	UpdatedAt  time.Time       `json:"updatedAt"`
	UpdatedBy  string          `json:"updatedBy,omitempty"`

	info Info
}

// Info returns the metadata parsed from Match
func (s *Snapshot) Info() Info {
	return s.info
}

// IsFinal reports whether the match has been completed
func (s *Snapshot) IsFinal() bool {
	return strings.EqualFold(s.info.Status, StatusFinal)
}

// Pin returns the PIN for t and whether connections with it are enabled
func (s *Snapshot) Pin(t PinType) (pin string, enabled bool) {
	switch t {
	case PinReferee:
		return s.info.RefereePin, s.info.RefereeConnectionEnabled
	case PinHomeTeam:
		return s.info.HomeTeamPin, s.info.HomeTeamConnectionEnabled
	case PinAwayTeam:
		return s.info.AwayTeamPin, s.info.AwayTeamConnectionEnabled
	}
	return "", false
}

// MatchesPin reports whether pin opens this match for t, ignoring the
// enabled flag and status
func (s *Snapshot) MatchesPin(t PinType, pin string) bool {
	stored, _ := s.Pin(t)
	return stored != "" && stored == pin
}

// AcceptsPin reports whether a tablet presenting pin as t may attach
func (s *Snapshot) AcceptsPin(t PinType, pin string) bool {
	_, enabled := s.Pin(t)
	return enabled && !s.IsFinal() && s.MatchesPin(t, pin)
}

// Listed reports whether the match is visible in public match listings
func (s *Snapshot) Listed() bool {
	return s.info.RefereeConnectionEnabled && !s.IsFinal()
}

// indexInfo parses the fields the relay needs out of the match metadata.
// Unknown or malformed fields are left at their zero value.
func (s *Snapshot) indexInfo() {
	s.info = parseInfo(s.Match)
	if s.info.ID == "" {
		s.info.ID = s.MatchID
	}
}

func parseInfo(raw json.RawMessage) Info {
	var info Info
	if len(raw) == 0 {
		return info
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return info
	}

	info.ID = flexField(fields, "id", "matchId")
	info.Status = flexField(fields, "status")
	info.GameNumber = flexField(fields, "gameNumber", "gameN", "game_n", "game_number")
	info.ScheduledAt = flexField(fields, "scheduledAt", "scheduled_at", "date")
	info.Court = flexField(fields, "court", "hall")
	info.RefereePin = flexField(fields, "refereePin", "referee_pin")
	info.HomeTeamPin = flexField(fields, "homeTeamPin", "home_team_pin", "homePin")
	info.AwayTeamPin = flexField(fields, "awayTeamPin", "away_team_pin", "awayPin")
	info.RefereeConnectionEnabled = boolField(fields, "refereeConnectionEnabled", "referee_connection_enabled")
	info.HomeTeamConnectionEnabled = boolField(fields, "homeTeamConnectionEnabled", "home_team_connection_enabled")
	info.AwayTeamConnectionEnabled = boolField(fields, "awayTeamConnectionEnabled", "away_team_connection_enabled")
	return info
}

func flexField(fields map[string]json.RawMessage, names ...string) string {
	for _, name := range names {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		var v FlexString
		if err := json.Unmarshal(raw, &v); err == nil && v != "" {
			return v.String()
		}
	}
	return ""
}

// boolField accepts true/false, 1/0 and their string forms
func boolField(fields map[string]json.RawMessage, names ...string) bool {
	for _, name := range names {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			return b
		}
		var v FlexString
		if err := json.Unmarshal(raw, &v); err == nil {
			switch strings.ToLower(v.String()) {
			case "true", "1", "yes":
				return true
			}
			return false
		}
	}
	return false
}
