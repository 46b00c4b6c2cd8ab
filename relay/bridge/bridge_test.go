package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/volley-relay/relay/protocol"
)

// recordingBroadcaster keeps every frame and optionally answers it
type recordingBroadcaster struct {
	mu     sync.Mutex
	frames []protocol.Request
	onSend func(req protocol.Request)
}

func (r *recordingBroadcaster) BroadcastAll(data []byte) int {
	var req protocol.Request
	json.Unmarshal(data, &req)

	r.mu.Lock()
	r.frames = append(r.frames, req)
	onSend := r.onSend
	r.mu.Unlock()

	if onSend != nil {
		go onSend(req)
	}
	return 1
}

func (r *recordingBroadcaster) last() protocol.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames[len(r.frames)-1]
}

func TestBridge_ResolvesMatchingResponse(t *testing.T) {
	rec := &recordingBroadcaster{}
	b := New(rec, time.Second)
	rec.onSend = func(req protocol.Request) {
		b.Resolve(req.RequestID, Outcome{Success: true, MatchID: "100", Data: json.RawMessage(`{"id":100}`)})
	}

	out, err := b.Correlate(context.Background(), protocol.KindPinValidation, protocol.Request{Pin: "123456", PinType: "referee"}, 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !out.Success || out.MatchID != "100" {
		t.Errorf("Unexpected outcome %+v", out)
	}

	sent := rec.last()
	if sent.Type != "validate-pin-request" {
		t.Errorf("Expected validate-pin-request, got %s", sent.Type)
	}
	if sent.Pin != "123456" {
		t.Errorf("Expected pin to be forwarded, got %q", sent.Pin)
	}
	if b.Pending() != 0 {
		t.Errorf("Expected no pending requests, got %d", b.Pending())
	}
}

func TestBridge_TimeoutCompletesOnce(t *testing.T) {
	rec := &recordingBroadcaster{}
	b := New(rec, time.Second)

	start := time.Now()
	_, err := b.Correlate(context.Background(), protocol.KindMatchData, protocol.Request{MatchID: "300"}, 30*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Correlate took far longer than its timeout")
	}
	if b.Pending() != 0 {
		t.Errorf("Expected pending entry to be removed, got %d", b.Pending())
	}

	// A late answer is discarded
	if err := b.Resolve(rec.last().RequestID, Outcome{Success: true}); !errors.Is(err, ErrUnknownRequest) {
		t.Errorf("Expected ErrUnknownRequest for late response, got %v", err)
	}
}

func TestBridge_DuplicateResponseIgnored(t *testing.T) {
	rec := &recordingBroadcaster{}
	b := New(rec, time.Second)

	var results []error
	var mu sync.Mutex
	rec.onSend = func(req protocol.Request) {
		for i := 0; i < 3; i++ {
			err := b.Resolve(req.RequestID, Outcome{Success: true})
			mu.Lock()
			results = append(results, err)
			mu.Unlock()
		}
	}

	if _, err := b.Correlate(context.Background(), protocol.KindMatchUpdate, protocol.Request{MatchID: "1"}, 0); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(results)
		mu.Unlock()
		if n == 3 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	accepted := 0
	for _, err := range results {
		if err == nil {
			accepted++
		}
	}
	if accepted != 1 {
		t.Errorf("Expected exactly one accepted response, got %d", accepted)
	}
}

func TestBridge_ContextCancel(t *testing.T) {
	b := New(&recordingBroadcaster{}, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Correlate(ctx, protocol.KindGameNumber, protocol.Request{GameN: "12"}, 0)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if b.Pending() != 0 {
		t.Errorf("Expected pending entry to be removed, got %d", b.Pending())
	}
}

func TestBridge_NoBroadcaster(t *testing.T) {
	b := New(nil, 0)
	if b.Timeout() != DefaultTimeout {
		t.Errorf("Expected default timeout, got %v", b.Timeout())
	}
	if _, err := b.Correlate(context.Background(), protocol.KindMatchData, protocol.Request{}, 0); !errors.Is(err, ErrNoBroadcaster) {
		t.Errorf("Expected ErrNoBroadcaster, got %v", err)
	}
}

func TestNewRequestID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewRequestID(protocol.KindPinValidation)
		if seen[id] {
			t.Fatalf("Duplicate request ID %s", id)
		}
		seen[id] = true
		if !strings.HasPrefix(id, "pin-validation_") {
			t.Fatalf("Expected kind tag prefix, got %s", id)
		}
	}
}
