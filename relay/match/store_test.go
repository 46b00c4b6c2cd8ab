package match

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
)

func createTestSnapshot(status, refereePin string, refereeEnabled bool) Snapshot {
	meta := map[string]interface{}{
		"status":                   status,
		"refereePin":               refereePin,
		"refereeConnectionEnabled": refereeEnabled,
		"homeTeamPin":              "111111",
		"awayTeamPin":              222222,
		"gameNumber":               1042,
	}
	raw, _ := json.Marshal(meta)
	return Snapshot{
		Match:    raw,
		HomeTeam: json.RawMessage(`{"name":"Home"}`),
		AwayTeam: json.RawMessage(`{"name":"Away"}`),
		Sets:     json.RawMessage(`[]`),
		Events:   json.RawMessage(`[]`),
	}
}

func TestStore_UpsertGet(t *testing.T) {
	store := NewStore()

	t.Run("get returns exactly the upserted snapshot", func(t *testing.T) {
		snap := createTestSnapshot("live", "123456", true)
		stored, err := store.Upsert("100", snap, "client-a")
		if err != nil {
			t.Fatalf("Failed to upsert: %v", err)
		}

		got, err := store.Get("100")
		if err != nil {
			t.Fatalf("Failed to get: %v", err)
		}
		if got != stored {
			t.Error("Expected Get to return the stored snapshot")
		}
		if string(got.Match) != string(snap.Match) {
			t.Errorf("Expected match metadata %s, got %s", snap.Match, got.Match)
		}
		if got.UpdatedBy != "client-a" {
			t.Errorf("Expected updatedBy 'client-a', got '%s'", got.UpdatedBy)
		}
		if got.UpdatedAt.IsZero() {
			t.Error("Expected updatedAt to be set")
		}
	})

	t.Run("overwrite drops previous fields", func(t *testing.T) {
		first := createTestSnapshot("live", "123456", true)
		first.HomeRoster = json.RawMessage(`[{"number":7}]`)
		store.Upsert("101", first, "client-a")

		second := createTestSnapshot("live", "654321", true)
		store.Upsert("101", second, "client-b")

		got, _ := store.Get("101")
		if got.HomeRoster != nil {
			t.Errorf("Expected roster from first write to be gone, got %s", got.HomeRoster)
		}
		if pin, _ := got.Pin(PinReferee); pin != "654321" {
			t.Errorf("Expected referee pin '654321', got '%s'", pin)
		}
		if got.UpdatedBy != "client-b" {
			t.Errorf("Expected updatedBy 'client-b', got '%s'", got.UpdatedBy)
		}
	})

	t.Run("empty match ID", func(t *testing.T) {
		_, err := store.Upsert("  ", createTestSnapshot("live", "", false), "x")
		if err != ErrInvalidMatchID {
			t.Errorf("Expected ErrInvalidMatchID, got %v", err)
		}
	})

	t.Run("missing match", func(t *testing.T) {
		_, err := store.Get("nope")
		if err != ErrMatchNotFound {
			t.Errorf("Expected ErrMatchNotFound, got %v", err)
		}
	})
}

func TestStore_CanonicalKeys(t *testing.T) {
	store := NewStore()

	var id FlexString
	if err := json.Unmarshal([]byte(`42`), &id); err != nil {
		t.Fatalf("Failed to decode numeric ID: %v", err)
	}

	store.Upsert(" 42 ", createTestSnapshot("live", "", false), "a")

	if _, err := store.Get(id.String()); err != nil {
		t.Errorf("Expected numeric 42 to resolve to the same match: %v", err)
	}
}

func TestStore_Delete(t *testing.T) {
	store := NewStore()
	store.Upsert("1", createTestSnapshot("live", "", false), "a")

	if !store.Delete("1") {
		t.Error("Expected first delete to report removal")
	}
	if store.Delete("1") {
		t.Error("Expected second delete to be a no-op")
	}
	if store.Count() != 0 {
		t.Errorf("Expected empty store, got %d", store.Count())
	}
}

func TestStore_DeleteAllExcept(t *testing.T) {
	store := NewStore()
	for i := 0; i < 5; i++ {
		store.Upsert(fmt.Sprintf("%d", i), createTestSnapshot("live", "", false), "a")
	}

	removed := store.DeleteAllExcept("3")
	if removed != 4 {
		t.Errorf("Expected 4 removed, got %d", removed)
	}
	if _, err := store.Get("3"); err != nil {
		t.Error("Expected kept match to survive")
	}

	removed = store.DeleteAllExcept("")
	if removed != 1 {
		t.Errorf("Expected 1 removed, got %d", removed)
	}
	if store.Count() != 0 {
		t.Errorf("Expected empty store, got %d", store.Count())
	}
}

func TestStore_List(t *testing.T) {
	store := NewStore()
	store.Upsert("b", createTestSnapshot("live", "", true), "a")
	store.Upsert("a", createTestSnapshot("scheduled", "", true), "a")
	store.Upsert("c", createTestSnapshot("final", "", true), "a")
	store.Upsert("d", createTestSnapshot("live", "", false), "a")

	listed := store.List((*Snapshot).Listed)
	if len(listed) != 2 {
		t.Fatalf("Expected 2 listed matches, got %d", len(listed))
	}
	if listed[0].MatchID != "a" || listed[1].MatchID != "b" {
		t.Errorf("Expected matches a, b in order, got %s, %s", listed[0].MatchID, listed[1].MatchID)
	}

	if all := store.List(nil); len(all) != 4 {
		t.Errorf("Expected 4 matches, got %d", len(all))
	}
}

func TestStore_FindByPin(t *testing.T) {
	store := NewStore()
	store.Upsert("100", createTestSnapshot("live", "123456", true), "a")
	store.Upsert("200", createTestSnapshot("final", "000000", true), "a")

	t.Run("open match", func(t *testing.T) {
		snap, ok := store.FindByPin(PinReferee, "123456")
		if !ok {
			t.Fatal("Expected to find match by pin")
		}
		if !snap.AcceptsPin(PinReferee, "123456") {
			t.Error("Expected live match to accept pin")
		}
	})

	t.Run("final match is found but not accepted", func(t *testing.T) {
		snap, ok := store.FindByPin(PinReferee, "000000")
		if !ok {
			t.Fatal("Expected to find final match by pin")
		}
		if snap.AcceptsPin(PinReferee, "000000") {
			t.Error("Expected final match to reject pin")
		}
	})

	t.Run("numeric pin in metadata", func(t *testing.T) {
		if _, ok := store.FindByPin(PinAwayTeam, "222222"); !ok {
			t.Error("Expected numeric away pin to match")
		}
	})

	t.Run("unknown pin", func(t *testing.T) {
		if _, ok := store.FindByPin(PinReferee, "999999"); ok {
			t.Error("Expected no match for unknown pin")
		}
	})
}

func TestStore_FindByGameNumber(t *testing.T) {
	store := NewStore()
	store.Upsert("100", createTestSnapshot("live", "", false), "a")

	snap, ok := store.FindByGameNumber("1042")
	if !ok {
		t.Fatal("Expected to find match by game number")
	}
	if snap.MatchID != "100" {
		t.Errorf("Expected match 100, got %s", snap.MatchID)
	}

	if _, ok := store.FindByGameNumber("7"); ok {
		t.Error("Expected no match for unknown game number")
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store := NewStore()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			store.Upsert("shared", createTestSnapshot("live", fmt.Sprintf("%06d", i), true), "w")
		}(i)
		go func() {
			defer wg.Done()
			if snap, err := store.Get("shared"); err == nil && snap.Match == nil {
				t.Error("Observed snapshot without metadata")
			}
		}()
	}
	wg.Wait()

	if store.Count() != 1 {
		t.Errorf("Expected 1 match, got %d", store.Count())
	}
}
