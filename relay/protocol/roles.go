package protocol

import "strings"

// Role is the part a connection plays in a match room
type Role string

const (
	RoleScoreboard Role = "scoreboard"
	RoleReferee    Role = "referee"
	RoleBench      Role = "bench"
	RoleSubscriber Role = "subscriber"
	RoleUnknown    Role = "unknown"
)

// Team is the side a bench connection belongs to
type Team string

const (
	TeamNone Team = ""
	TeamHome Team = "home"
	TeamAway Team = "away"
)

// ParseRole maps a client-supplied role onto a Role and, for team-specific
// aliases, the implied Team
func ParseRole(s string) (Role, Team) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scoreboard", "scorer":
		return RoleScoreboard, TeamNone
	case "referee", "ref":
		return RoleReferee, TeamNone
	case "bench", "team":
		return RoleBench, TeamNone
	case "home", "hometeam":
		return RoleBench, TeamHome
	case "away", "awayteam":
		return RoleBench, TeamAway
	case "subscriber", "livescore", "spectator", "viewer":
		return RoleSubscriber, TeamNone
	}
	return RoleUnknown, TeamNone
}

// ParseTeam maps a client-supplied team onto a Team
func ParseTeam(s string) Team {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "home", "hometeam", "a":
		return TeamHome
	case "away", "awayteam", "b":
		return TeamAway
	}
	return TeamNone
}
