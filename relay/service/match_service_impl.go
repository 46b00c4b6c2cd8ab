package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/wricardo/volley-relay/relay/bridge"
	"github.com/wricardo/volley-relay/relay/match"
	"github.com/wricardo/volley-relay/relay/protocol"
	"github.com/wricardo/volley-relay/transport/websocket"
)

const scoreboardHint = "make sure the scoreboard is running and connected"

// matchServiceImpl implements the MatchService interface
type matchServiceImpl struct {
	store      *match.Store
	hub        Hub
	correlator Correlator
	opts       Options
}

// NewMatchService creates a match service. correlator may be nil, in which
// case store misses are reported without asking the scoreboard.
func NewMatchService(store *match.Store, hub Hub, correlator Correlator, opts Options) MatchService {
	if opts.StartedAt.IsZero() {
		opts.StartedAt = time.Now()
	}
	return &matchServiceImpl{
		store:      store,
		hub:        hub,
		correlator: correlator,
		opts:       opts,
	}
}

// Status returns counters and uptime of the relay
func (s *matchServiceImpl) Status(ctx context.Context) (*Status, error) {
	stats := s.hub.Stats()
	uptime := time.Since(s.opts.StartedAt)

	status := &Status{
		Status:          "ok",
		Mode:            s.opts.Mode,
		Connections:     stats.Connections,
		Rooms:           stats.Rooms,
		Matches:         s.store.Count(),
		BridgeEnabled:   s.correlator != nil,
		RetainSnapshots: s.opts.RetainSnapshots,
		StartedAt:       s.opts.StartedAt,
		Uptime:          uptime.Truncate(time.Second).String(),
		UptimeSeconds:   int64(uptime.Seconds()),
	}
	if s.correlator != nil {
		status.PendingRequests = s.correlator.Pending()
	}
	return status, nil
}

// Connections lists every client except scoreboards
func (s *matchServiceImpl) Connections(ctx context.Context) (*websocket.ConnectionsReport, error) {
	report := s.hub.Connections(protocol.RoleScoreboard)
	return &report, nil
}

// ValidatePin finds the match a tablet PIN opens. Matches that are final or
// closed to the PIN's role are never returned.
func (s *matchServiceImpl) ValidatePin(ctx context.Context, pin, pinType string) (*PinResult, error) {
	if utf8.RuneCountInString(pin) != match.PinLength {
		return nil, fmt.Errorf("%w: pin must be exactly %d characters", ErrInvalidRequest, match.PinLength)
	}
	t, ok := match.ParsePinType(pinType)
	if !ok {
		return nil, fmt.Errorf("%w: type must be one of referee, homeTeam, awayTeam", ErrInvalidRequest)
	}

	if snap, found := s.store.FindByPin(t, pin); found {
		if snap.IsFinal() {
			return nil, fmt.Errorf("%w: match %s is already final", ErrNotFound, snap.MatchID)
		}
		if !snap.AcceptsPin(t, pin) {
			return nil, fmt.Errorf("%w: %s connections are disabled for match %s", ErrNotFound, t, snap.MatchID)
		}
		return &PinResult{MatchID: snap.MatchID, PinType: string(t), Match: snap, Source: SourceStore}, nil
	}

	out, err := s.correlate(ctx, protocol.KindPinValidation, protocol.Request{Pin: pin, PinType: string(t)})
	if err != nil {
		return nil, lookupError(err, "no match found for this PIN")
	}
	return &PinResult{MatchID: out.MatchID, PinType: string(t), Match: rawData(out.Data), Source: SourceScoreboard}, nil
}

// ListMatches returns the matches open to referee tablets
func (s *matchServiceImpl) ListMatches(ctx context.Context) ([]*MatchSummary, error) {
	snaps := s.store.List(func(snap *match.Snapshot) bool {
		return snap.Listed()
	})

	result := make([]*MatchSummary, 0, len(snaps))
	for _, snap := range snaps {
		result = append(result, &MatchSummary{
			MatchID:   snap.MatchID,
			Info:      snap.Info(),
			UpdatedAt: snap.UpdatedAt,
		})
	}
	return result, nil
}

// GetMatch returns the snapshot of matchID, asking the scoreboard when the
// relay holds none
func (s *matchServiceImpl) GetMatch(ctx context.Context, matchID string) (*MatchResult, error) {
	id := match.CanonicalID(matchID)
	if id == "" {
		return nil, fmt.Errorf("%w: match id is required", ErrInvalidRequest)
	}

	if snap, err := s.store.Get(id); err == nil {
		return &MatchResult{MatchID: id, Match: snap, Source: SourceStore}, nil
	}

	out, err := s.correlate(ctx, protocol.KindMatchData, protocol.Request{MatchID: id})
	if err != nil {
		return nil, lookupError(err, fmt.Sprintf("match %s not found", id))
	}
	return scoreboardResult(id, out), nil
}

// FindByGameNumber returns the match scheduled as gameNumber
func (s *matchServiceImpl) FindByGameNumber(ctx context.Context, gameNumber string) (*MatchResult, error) {
	n := match.CanonicalID(gameNumber)
	if n == "" {
		return nil, fmt.Errorf("%w: game number is required", ErrInvalidRequest)
	}

	if snap, found := s.store.FindByGameNumber(n); found {
		return &MatchResult{MatchID: snap.MatchID, Match: snap, Source: SourceStore}, nil
	}

	out, err := s.correlate(ctx, protocol.KindGameNumber, protocol.Request{GameN: n})
	if err != nil {
		return nil, lookupError(err, fmt.Sprintf("no match with game number %s", n))
	}
	return scoreboardResult("", out), nil
}

// UpdateMatch forwards updates to the scoreboard, which owns match state.
// The relay's snapshot changes only when the scoreboard syncs afterwards.
func (s *matchServiceImpl) UpdateMatch(ctx context.Context, matchID string, updates json.RawMessage) (*MatchResult, error) {
	id := match.CanonicalID(matchID)
	if id == "" {
		return nil, fmt.Errorf("%w: match id is required", ErrInvalidRequest)
	}
	trimmed := strings.TrimSpace(string(updates))
	if !strings.HasPrefix(trimmed, "{") || trimmed == "{}" {
		return nil, fmt.Errorf("%w: updates must be a non-empty JSON object", ErrInvalidRequest)
	}
	if s.correlator == nil {
		return nil, fmt.Errorf("%w: scoreboard bridge is disabled", ErrRequestFailed)
	}

	out, err := s.correlate(ctx, protocol.KindMatchUpdate, protocol.Request{MatchID: id, Updates: updates})
	if err != nil {
		if errors.Is(err, errRejected) {
			return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
		}
		return nil, fmt.Errorf("%w: %v; %s", ErrRequestFailed, err, scoreboardHint)
	}
	return scoreboardResult(id, out), nil
}

var (
	errBridgeDisabled = errors.New("scoreboard bridge is disabled")
	errRejected       = errors.New("scoreboard rejected the request")
)

// correlate asks the scoreboard. An unsuccessful answer is returned as an
// error wrapping errRejected.
func (s *matchServiceImpl) correlate(ctx context.Context, kind protocol.RequestKind, req protocol.Request) (bridge.Outcome, error) {
	if s.correlator == nil {
		return bridge.Outcome{}, errBridgeDisabled
	}

	out, err := s.correlator.Correlate(ctx, kind, req, 0)
	if err != nil {
		slog.Info("scoreboard request failed", "kind", kind, "matchId", req.MatchID, "error", err)
		return bridge.Outcome{}, err
	}
	if !out.Success {
		reason := out.Error
		if reason == "" {
			reason = "no details given"
		}
		return bridge.Outcome{}, fmt.Errorf("%w: %s", errRejected, reason)
	}
	return out, nil
}

// lookupError maps a failed lookup onto the service errors. Timeouts and
// refusals are reported as not found.
func lookupError(err error, missing string) error {
	switch {
	case errors.Is(err, errBridgeDisabled):
		return fmt.Errorf("%w: %s", ErrNotFound, missing)
	case errors.Is(err, bridge.ErrTimeout):
		return fmt.Errorf("%w: %s; %s", ErrNotFound, missing, scoreboardHint)
	case errors.Is(err, errRejected):
		return fmt.Errorf("%w: %s (%v)", ErrNotFound, missing, err)
	}
	return fmt.Errorf("%w: %v", ErrRequestFailed, err)
}

func scoreboardResult(matchID string, out bridge.Outcome) *MatchResult {
	if out.MatchID != "" {
		matchID = out.MatchID
	}
	return &MatchResult{MatchID: matchID, Match: rawData(out.Data), Source: SourceScoreboard}
}

// rawData keeps an empty payload from being encoded as invalid JSON
func rawData(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
