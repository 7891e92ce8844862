package sessionkit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestAuditDispatcherDeliversInOrder(t *testing.T) {
	sink := NewChannelSink(8)
	dispatcher := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 8}, sink)
	defer dispatcher.Close()

	for _, eventType := range []string{auditEventSignIn, auditEventRefresh, auditEventSignOut} {
		dispatcher.Emit(context.Background(), AuditEvent{EventType: eventType, Success: true})
	}

	for _, want := range []string{auditEventSignIn, auditEventRefresh, auditEventSignOut} {
		select {
		case got := <-sink.Events():
			if got.EventType != want {
				t.Fatalf("event = %q, want %q", got.EventType, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestAuditDispatcherDisabledIsNil(t *testing.T) {
	dispatcher := newAuditDispatcher(AuditConfig{Enabled: false}, NoOpSink{})
	if dispatcher != nil {
		t.Fatal("disabled dispatcher should be nil")
	}

	// Every method must be nil-receiver safe.
	dispatcher.Emit(context.Background(), AuditEvent{EventType: auditEventSignIn})
	dispatcher.Close()
	if got := dispatcher.Dropped(); got != 0 {
		t.Fatalf("Dropped = %d", got)
	}
}

type blockingSink struct {
	gate chan struct{}
}

func (s blockingSink) Emit(context.Context, AuditEvent) { <-s.gate }

func TestAuditDispatcherDropsWhenFull(t *testing.T) {
	// The sink never consumes: the run loop blocks on the first event, the
	// buffer holds one more, everything past that drops.
	gate := make(chan struct{})
	dispatcher := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, blockingSink{gate: gate})

	for i := 0; i < 10; i++ {
		dispatcher.Emit(context.Background(), AuditEvent{EventType: auditEventSignIn})
	}

	if got := dispatcher.Dropped(); got == 0 {
		t.Fatal("saturated dispatcher dropped nothing")
	}
	close(gate)
	dispatcher.Close()
}

func TestAuditDispatcherCloseDrains(t *testing.T) {
	sink := NewChannelSink(16)
	dispatcher := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 16}, sink)

	for i := 0; i < 5; i++ {
		dispatcher.Emit(context.Background(), AuditEvent{EventType: auditEventSignIn})
	}
	dispatcher.Close()

	delivered := 0
	for {
		select {
		case <-sink.Events():
			delivered++
		default:
			if delivered != 5 {
				t.Fatalf("delivered = %d, want 5", delivered)
			}
			return
		}
	}
}

func TestJSONWriterSinkFormat(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		Timestamp:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		EventType:      auditEventSignIn,
		IdentityID:     "user-1",
		IdentifierHash: "abc123",
		Success:        true,
	})
	sink.Emit(context.Background(), AuditEvent{EventType: auditEventSignOut, Success: true})

	scanner := bufio.NewScanner(&buf)
	var lines []AuditEvent
	for scanner.Scan() {
		var event AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
		lines = append(lines, event)
	}
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if lines[0].EventType != auditEventSignIn || lines[0].IdentityID != "user-1" {
		t.Fatalf("first line = %+v", lines[0])
	}
}

func TestAuditedSignInHashesIdentifier(t *testing.T) {
	sink := NewChannelSink(16)
	clock := func() time.Time { return engineTestNow }
	provider := newFakeProvider(clock)

	cfg := DefaultConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false

	engine, err := New().
		WithConfig(cfg).
		WithProvider(provider).
		WithSecureStore(newFakeSecure()).
		WithAuditSink(sink).
		WithClock(clock).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := engine.SignIn(context.Background(), "alice@example.com", "Sup3rSecret"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	select {
	case event := <-sink.Events():
		if event.EventType != auditEventSignIn || !event.Success {
			t.Fatalf("event = %+v", event)
		}
		if event.IdentifierHash == "" {
			t.Fatal("identifier missing from event")
		}
		if strings.Contains(event.IdentifierHash, "@") {
			t.Fatalf("identifier hash leaks the address: %q", event.IdentifierHash)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for audit event")
	}
}
