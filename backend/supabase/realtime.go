package supabase

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const heartbeatInterval = 25 * time.Second

// phoenixMessage is the realtime channel's wire frame.
type phoenixMessage struct {
	Topic   string         `json:"topic"`
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload"`
	Ref     string         `json:"ref"`
}

// SubscribeChanges joins the realtime channel for the user's rows of
// the tasks table. Every INSERT/UPDATE/DELETE event invokes onChange
// with no payload beyond "something changed"; callers refetch.
//
// The returned disposer closes the socket. Reconnection after a broken
// socket is not attempted here; a new subscription is the caller's
// move.
func (c *Client) SubscribeChanges(ctx context.Context, userID string, onChange func()) (func(), error) {
	wsURL, err := c.realtimeURL()
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("open realtime channel: %w", err)
	}

	topic := "realtime:public:tasks:user_id=eq." + userID
	join := phoenixMessage{
		Topic:   topic,
		Event:   "phx_join",
		Payload: map[string]any{"user_token": c.accessToken()},
		Ref:     "1",
	}

	var writeMu sync.Mutex
	writeJSON := func(msg phoenixMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(msg)
	}

	if err := writeJSON(join); err != nil {
		conn.Close()
		return nil, fmt.Errorf("join realtime channel: %w", err)
	}

	done := make(chan struct{})
	var once sync.Once
	dispose := func() {
		once.Do(func() {
			close(done)
			conn.Close()
			c.logger.Debug("realtime subscription released", "topic", topic)
		})
	}

	// Heartbeats keep the channel open; the server drops silent peers.
	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				dispose()
				return
			case <-ticker.C:
				hb := phoenixMessage{Topic: "phoenix", Event: "heartbeat", Payload: map[string]any{}, Ref: "0"}
				if err := writeJSON(hb); err != nil {
					dispose()
					return
				}
			}
		}
	}()

	go func() {
		defer dispose()
		for {
			var msg phoenixMessage
			if err := conn.ReadJSON(&msg); err != nil {
				select {
				case <-done:
				default:
					c.logger.Debug("realtime channel closed", "err", err)
				}
				return
			}
			switch msg.Event {
			case "INSERT", "UPDATE", "DELETE":
				onChange()
			}
		}
	}()

	return dispose, nil
}

func (c *Client) realtimeURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported backend scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/realtime/v1/websocket"
	q := url.Values{"apikey": {c.anonKey}, "vsn": {"1.0.0"}}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
