package websocket

import (
	"encoding/json"
	"testing"

	"github.com/wricardo/volley-relay/relay/bridge"
	"github.com/wricardo/volley-relay/relay/match"
	"github.com/wricardo/volley-relay/relay/protocol"
)

type fakeResolver struct {
	resolved map[string]bridge.Outcome
}

func (f *fakeResolver) Resolve(id string, out bridge.Outcome) error {
	if f.resolved == nil {
		f.resolved = make(map[string]bridge.Outcome)
	}
	if _, done := f.resolved[id]; done {
		return bridge.ErrUnknownRequest
	}
	f.resolved[id] = out
	return nil
}

// joinAll puts every client in room matchID and clears their queues
func joinAll(h *Hub, matchID string, clients ...*Client) {
	for _, c := range clients {
		h.join(c, matchID, protocol.RoleSubscriber, protocol.TeamNone)
	}
	for _, c := range clients {
		drain(c)
	}
}

func TestRouterSync(t *testing.T) {
	hub := newTestHub(false)
	x := addTestClient(hub, "x")
	y := addTestClient(hub, "y")
	other := addTestClient(hub, "other")
	joinAll(hub, "100", x, y)
	joinAll(hub, "200", other)

	send(hub, x, `{"type":"sync-match-data","matchId":"100","data":{"match":{"status":"live"},"sets":[{"home":25,"away":23}]}}`)

	if frames := drain(x); len(frames) != 0 {
		t.Errorf("Sender must not receive its own update, got %v", frames)
	}
	if frames := drain(other); len(frames) != 0 {
		t.Errorf("Other rooms must not receive the update, got %v", frames)
	}
	update := findFrame(drain(y), protocol.TypeMatchUpdate)
	if update == nil {
		t.Fatal("Expected match-update for y")
	}
	data, ok := update["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected snapshot data, got %v", update["data"])
	}
	if data["updatedBy"] != "x" {
		t.Errorf("Expected updatedBy x, got %v", data["updatedBy"])
	}

	snap, err := hub.store.Get("100")
	if err != nil {
		t.Fatalf("Expected stored snapshot: %v", err)
	}
	if string(snap.Sets) != `[{"home":25,"away":23}]` {
		t.Errorf("Unexpected stored sets %s", snap.Sets)
	}
}

func TestRouterSyncWithoutRoom(t *testing.T) {
	hub := newTestHub(false)
	x := addTestClient(hub, "x")

	send(hub, x, `{"type":"sync","matchId":"7","match":{"status":"scheduled"}}`)

	if _, err := hub.store.Get("7"); err != nil {
		t.Errorf("Expected snapshot to be stored without a room: %v", err)
	}
	if x.matchID != "" {
		t.Error("Sync must not join the sender to the room")
	}
}

func TestRouterAction(t *testing.T) {
	hub := newTestHub(false)
	a := addTestClient(hub, "a")
	b := addTestClient(hub, "b")
	joinAll(hub, "1", a, b)

	send(hub, a, `{"type":"match-action","matchId":"1","action":{"kind":"timeout","team":"home"}}`)

	got := findFrame(drain(b), "match-action")
	if got == nil {
		t.Fatal("Expected relayed action")
	}
	if got["from"] != "a" {
		t.Errorf("Expected action from a, got %v", got["from"])
	}
	action, _ := got["action"].(map[string]interface{})
	if action["kind"] != "timeout" {
		t.Errorf("Expected action payload to be relayed verbatim, got %v", got["action"])
	}
	if hub.store.Count() != 0 {
		t.Error("Actions must not touch the store")
	}
}

func TestRouterDelete(t *testing.T) {
	hub := newTestHub(true)
	a := addTestClient(hub, "a")
	b := addTestClient(hub, "b")
	hub.store.Upsert("1", match.Snapshot{Match: json.RawMessage(`{}`)}, "a")
	joinAll(hub, "1", a, b)

	send(hub, a, `{"type":"delete-match","matchId":"1"}`)

	if _, err := hub.store.Get("1"); err == nil {
		t.Error("Expected snapshot to be deleted")
	}
	if hub.rooms.Len() != 0 {
		t.Error("Expected room to be dissolved")
	}
	if b.matchID != "" {
		t.Error("Expected members to be unassigned")
	}
	if findFrame(drain(b), protocol.TypeMatchDeleted) == nil {
		t.Error("Expected match-deleted notification")
	}
	if findFrame(drain(a), protocol.TypeMatchDeleted) == nil {
		t.Error("Expected match-deleted acknowledgment")
	}
}

func TestRouterClearAll(t *testing.T) {
	hub := newTestHub(true)
	a := addTestClient(hub, "a")
	for _, id := range []string{"1", "2", "3"} {
		hub.store.Upsert(id, match.Snapshot{Match: json.RawMessage(`{}`)}, "a")
	}

	send(hub, a, `{"type":"clear-all-matches","keepMatchId":"2"}`)

	if hub.store.Count() != 1 {
		t.Errorf("Expected only the kept snapshot, got %d", hub.store.Count())
	}
	if _, err := hub.store.Get("2"); err != nil {
		t.Error("Expected snapshot 2 to be kept")
	}
	ack := findFrame(drain(a), protocol.TypeMatchesCleared)
	if ack == nil || ack["deleted"] != float64(2) {
		t.Errorf("Expected matches-cleared with 2 deleted, got %v", ack)
	}
}

func TestRouterErrors(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"malformed json", `{"type":`},
		{"join without match", `{"type":"join-match","role":"referee"}`},
		{"join without role", `{"type":"join-match","matchId":"1"}`},
		{"sync without payload", `{"type":"sync-match-data","matchId":"1"}`},
		{"action without match", `{"type":"match-action","action":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := newTestHub(false)
			a := addTestClient(hub, "a")
			b := addTestClient(hub, "b")
			joinAll(hub, "1", b)

			send(hub, a, tt.frame)

			if findFrame(drain(a), protocol.TypeError) == nil {
				t.Error("Expected error reply to sender")
			}
			if frames := drain(b); len(frames) != 0 {
				t.Errorf("Errors must reach only the sender, got %v", frames)
			}
			if hub.store.Count() != 0 || hub.rooms.Size("1") != 1 {
				t.Error("Rejected frame must not change state")
			}
		})
	}
}

func TestRouterUnknownType(t *testing.T) {
	hub := newTestHub(false)
	a := addTestClient(hub, "a")

	send(hub, a, `{"type":"launch-fireworks","matchId":"1"}`)

	if frames := drain(a); len(frames) != 0 {
		t.Errorf("Unknown types must be ignored, got %v", frames)
	}
	if _, ok := hub.registry.Get("a"); !ok {
		t.Error("Unknown types must not close the connection")
	}
}

func TestRouterResponse(t *testing.T) {
	hub := newTestHub(false)
	resolver := &fakeResolver{}
	hub.SetResolver(resolver)
	a := addTestClient(hub, "a")

	send(hub, a, `{"type":"match-data-response","requestId":"match-data_1_abc","success":true,"matchId":"9","matchData":{"id":9}}`)
	send(hub, a, `{"type":"match-data-response","requestId":"match-data_1_abc","success":false}`)

	out, ok := resolver.resolved["match-data_1_abc"]
	if !ok {
		t.Fatal("Expected response to reach the resolver")
	}
	if !out.Success || out.MatchID != "9" || string(out.Data) != `{"id":9}` {
		t.Errorf("Unexpected outcome %+v", out)
	}
	if frames := drain(a); len(frames) != 0 {
		t.Errorf("Responses must not be echoed, got %v", frames)
	}
}
