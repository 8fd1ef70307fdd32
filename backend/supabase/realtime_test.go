package supabase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestSubscribeChangesJoinsAndDelivers(t *testing.T) {
	upgrader := websocket.Upgrader{}
	joined := make(chan phoenixMessage, 1)
	events := make(chan struct{}, 4)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/realtime/v1/websocket" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("apikey"); got != "anon-key" {
			t.Errorf("expected apikey in query, got %q", got)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		var join phoenixMessage
		if err := conn.ReadJSON(&join); err != nil {
			t.Errorf("read join: %v", err)
			return
		}
		joined <- join

		for _, event := range []string{"phx_reply", "INSERT", "UPDATE", "DELETE"} {
			msg := phoenixMessage{Topic: join.Topic, Event: event, Payload: map[string]any{}}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
		// Hold the socket open until the client disposes it.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL, "anon-key", nil)
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}

	dispose, err := c.SubscribeChanges(context.Background(), "u1", func() {
		events <- struct{}{}
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer dispose()

	select {
	case join := <-joined:
		if join.Event != "phx_join" {
			t.Fatalf("expected phx_join, got %q", join.Event)
		}
		if !strings.HasSuffix(join.Topic, "tasks:user_id=eq.u1") {
			t.Fatalf("unexpected topic %q", join.Topic)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for join")
	}

	// phx_reply is protocol chatter; only the three row events notify.
	for i := 0; i < 3; i++ {
		select {
		case <-events:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for change %d", i+1)
		}
	}
	select {
	case <-events:
		t.Fatalf("unexpected extra notification")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscribeChangesDisposerIsIdempotent(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL, "anon-key", nil)
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}

	dispose, err := c.SubscribeChanges(context.Background(), "u1", func() {})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	dispose()
	dispose()
}

func TestSubscribeChangesRejectsUnreachableBackend(t *testing.T) {
	c, err := New("http://127.0.0.1:1", "anon-key", nil)
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	if _, err := c.SubscribeChanges(context.Background(), "u1", func() {}); err == nil {
		t.Fatalf("expected dial error")
	}
}
