package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeHub is an in-process websocket hub: it performs the auth handshake
// and answers commands through a pluggable handler.
type fakeHub struct {
	t       *testing.T
	server  *httptest.Server
	handler func(conn *websocket.Conn, msg map[string]any)

	// acceptToken is the token auth succeeds with.
	acceptToken string
}

func newFakeHub(t *testing.T) *fakeHub {
	t.Helper()
	f := &fakeHub{t: t, acceptToken: "test-token"}
	upgrader := websocket.Upgrader{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/websocket" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if err := conn.WriteJSON(map[string]any{"type": "auth_required"}); err != nil {
			return
		}
		var auth struct {
			Type        string `json:"type"`
			AccessToken string `json:"access_token"`
		}
		if err := conn.ReadJSON(&auth); err != nil {
			return
		}
		if auth.AccessToken != f.acceptToken {
			_ = conn.WriteJSON(map[string]any{"type": "auth_invalid", "message": "Invalid access token"})
			return
		}
		if err := conn.WriteJSON(map[string]any{"type": "auth_ok"}); err != nil {
			return
		}

		for {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if f.handler != nil {
				f.handler(conn, msg)
			}
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

// respond writes a success envelope for the given request.
func respond(conn *websocket.Conn, msg map[string]any, result any) {
	_ = conn.WriteJSON(map[string]any{
		"id":      msg["id"],
		"type":    "result",
		"success": true,
		"result":  result,
	})
}

func newTestClient(t *testing.T, f *fakeHub, token string) *Client {
	t.Helper()
	log := slog.New(slog.DiscardHandler)
	c := NewClient(f.server.URL, token, 2*time.Second, log)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestConnect_AuthOK(t *testing.T) {
	f := newFakeHub(t)
	c := newTestClient(t, f, "test-token")

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if c.State() != StateConnected {
		t.Errorf("State = %v, want connected", c.State())
	}
}

func TestConnect_AuthInvalid(t *testing.T) {
	f := newFakeHub(t)
	c := newTestClient(t, f, "wrong-token")

	err := c.Connect(context.Background())
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("Connect err = %v, want ErrAuthFailed", err)
	}
	if c.State() != StateDisconnected {
		t.Errorf("State = %v, want disconnected", c.State())
	}
}

func TestRequest_RoutesByID(t *testing.T) {
	f := newFakeHub(t)
	f.handler = func(conn *websocket.Conn, msg map[string]any) {
		respond(conn, msg, map[string]any{"echo": msg["type"]})
	}
	c := newTestClient(t, f, "test-token")
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	raw, err := c.Request(context.Background(), "ping_a", nil)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	var out map[string]string
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["echo"] != "ping_a" {
		t.Errorf("echo = %q, want ping_a", out["echo"])
	}
}

func TestRequest_ConcurrentCallers(t *testing.T) {
	f := newFakeHub(t)
	f.handler = func(conn *websocket.Conn, msg map[string]any) {
		respond(conn, msg, map[string]any{"echo": msg["type"]})
	}
	c := newTestClient(t, f, "test-token")
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// Discovery, history, and get_states all multiplex over the one
	// connection; parallel callers must get whole frames and their own
	// responses back.
	const callers = 16
	var wg sync.WaitGroup
	errs := make([]error, callers)
	echoes := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			raw, err := c.Request(context.Background(), fmt.Sprintf("cmd_%d", i), nil)
			if err != nil {
				errs[i] = err
				return
			}
			var out map[string]string
			if err := json.Unmarshal(raw, &out); err != nil {
				errs[i] = err
				return
			}
			echoes[i] = out["echo"]
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Errorf("caller %d: %v", i, errs[i])
			continue
		}
		if want := fmt.Sprintf("cmd_%d", i); echoes[i] != want {
			t.Errorf("caller %d got response %q, want %q", i, echoes[i], want)
		}
	}
}

func TestRequest_CommandError(t *testing.T) {
	f := newFakeHub(t)
	f.handler = func(conn *websocket.Conn, msg map[string]any) {
		_ = conn.WriteJSON(map[string]any{
			"id":      msg["id"],
			"type":    "result",
			"success": false,
			"error":   map[string]any{"code": "unknown_command", "message": "no such thing"},
		})
	}
	c := newTestClient(t, f, "test-token")
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	_, err := c.Request(context.Background(), "bogus", nil)
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("err = %v, want *CommandError", err)
	}
	if cmdErr.Code != "unknown_command" {
		t.Errorf("Code = %q", cmdErr.Code)
	}
}

func TestRequest_Timeout(t *testing.T) {
	f := newFakeHub(t)
	f.handler = func(conn *websocket.Conn, msg map[string]any) {
		// Never answer.
	}
	c := newTestClient(t, f, "test-token")
	c.timeout = 100 * time.Millisecond
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	_, err := c.Request(context.Background(), "slow", nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestRequest_NotConnected(t *testing.T) {
	f := newFakeHub(t)
	c := newTestClient(t, f, "test-token")

	_, err := c.Request(context.Background(), "anything", nil)
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}

func TestRequest_AfterClose(t *testing.T) {
	f := newFakeHub(t)
	c := newTestClient(t, f, "test-token")
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	_ = c.Close()

	_, err := c.Request(context.Background(), "anything", nil)
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}

func TestListLabels(t *testing.T) {
	f := newFakeHub(t)
	f.handler = func(conn *websocket.Conn, msg map[string]any) {
		if msg["type"] != "config/label_registry/list" {
			respond(conn, msg, nil)
			return
		}
		respond(conn, msg, []map[string]any{
			{"label_id": "abc", "name": "goal_gym", "description": `{"weekly_target": 4}`},
		})
	}
	c := newTestClient(t, f, "test-token")
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	labels, err := c.ListLabels(context.Background())
	if err != nil {
		t.Fatalf("ListLabels: %v", err)
	}
	if len(labels) != 1 || labels[0].LabelID != "abc" || labels[0].Name != "goal_gym" {
		t.Errorf("labels = %+v", labels)
	}
}

func TestListEntities(t *testing.T) {
	f := newFakeHub(t)
	f.handler = func(conn *websocket.Conn, msg map[string]any) {
		respond(conn, msg, []map[string]any{
			{"entity_id": "counter.gym_visits", "labels": []string{"abc"}},
		})
	}
	c := newTestClient(t, f, "test-token")
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	entities, err := c.ListEntities(context.Background())
	if err != nil {
		t.Fatalf("ListEntities: %v", err)
	}
	if len(entities) != 1 || entities[0].EntityID != "counter.gym_visits" {
		t.Fatalf("entities = %+v", entities)
	}
	if len(entities[0].Labels) != 1 || entities[0].Labels[0] != "abc" {
		t.Errorf("labels = %v", entities[0].Labels)
	}
}

func TestHistory_CompactRows(t *testing.T) {
	f := newFakeHub(t)
	f.handler = func(conn *websocket.Conn, msg map[string]any) {
		if msg["type"] != "history/history_during_period" {
			respond(conn, msg, nil)
			return
		}
		respond(conn, msg, map[string]any{
			"counter.gym_visits": []map[string]any{
				{"s": "0", "lu": 1756000000.0},
				{"s": "unknown", "lu": 1756000100.0},
				{"s": "1", "lu": 1756000200.5},
				{"s": "2", "lu": 1756000300.0},
			},
		})
	}
	c := newTestClient(t, f, "test-token")
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	start := time.Unix(1755990000, 0)
	end := start.Add(7 * 24 * time.Hour)
	traces, err := c.History(context.Background(), []string{"counter.gym_visits", "counter.absent"}, start, end)
	if err != nil {
		t.Fatalf("History: %v", err)
	}

	got := traces["counter.gym_visits"]
	if len(got) != 3 {
		t.Fatalf("got %d points, want 3 (non-numeric row dropped)", len(got))
	}
	if got[0].Value != 0 || got[1].Value != 1 || got[2].Value != 2 {
		t.Errorf("values = %v %v %v", got[0].Value, got[1].Value, got[2].Value)
	}
	for i := 1; i < len(got); i++ {
		if got[i].When.Before(got[i-1].When) {
			t.Errorf("trace not chronological at %d", i)
		}
	}

	if absent, ok := traces["counter.absent"]; !ok || len(absent) != 0 {
		t.Errorf("absent entity should map to an empty trace, got %v (ok=%v)", absent, ok)
	}
}

func TestHistory_LongFormRows(t *testing.T) {
	f := newFakeHub(t)
	f.handler = func(conn *websocket.Conn, msg map[string]any) {
		respond(conn, msg, map[string]any{
			"counter.reading": []map[string]any{
				{"state": "3", "last_updated": "2026-08-24T10:00:00Z"},
				{"state": "4", "last_updated": "2026-08-24T11:00:00Z"},
			},
		})
	}
	c := newTestClient(t, f, "test-token")
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	start := time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)
	traces, err := c.History(context.Background(), []string{"counter.reading"}, start, start.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	got := traces["counter.reading"]
	if len(got) != 2 || got[0].Value != 3 || got[1].Value != 4 {
		t.Errorf("trace = %+v", got)
	}
}

func TestHistory_NoEntities(t *testing.T) {
	f := newFakeHub(t)
	c := newTestClient(t, f, "test-token")

	// No round-trip happens, so no connection is needed.
	traces, err := c.History(context.Background(), nil, time.Now(), time.Now())
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(traces) != 0 {
		t.Errorf("traces = %v, want empty", traces)
	}
}

func TestWebsocketURL(t *testing.T) {
	tests := map[string]string{
		"http://hub.local:8123":  "ws://hub.local:8123/api/websocket",
		"http://hub.local:8123/": "ws://hub.local:8123/api/websocket",
		"https://ha.example.com": "wss://ha.example.com/api/websocket",
	}
	for in, want := range tests {
		if got := websocketURL(in); got != want {
			t.Errorf("websocketURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetStates(t *testing.T) {
	f := newFakeHub(t)
	f.handler = func(conn *websocket.Conn, msg map[string]any) {
		respond(conn, msg, []map[string]any{
			{
				"entity_id":  "counter.gym_visits",
				"state":      "2",
				"attributes": map[string]any{"friendly_name": "Gym Visits"},
			},
		})
	}
	c := newTestClient(t, f, "test-token")
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	states, err := c.GetStates(context.Background())
	if err != nil {
		t.Fatalf("GetStates: %v", err)
	}
	if len(states) != 1 || states[0].FriendlyName() != "Gym Visits" {
		t.Errorf("states = %+v", states)
	}
}

func TestGetStates_WrapsTransportError(t *testing.T) {
	f := newFakeHub(t)
	c := newTestClient(t, f, "test-token")

	// Never connected: the request fails before reaching the hub, and the
	// failure surfaces as a registry error like the other registry reads.
	_, err := c.GetStates(context.Background())
	var regErr *RegistryError
	if !errors.As(err, &regErr) {
		t.Fatalf("err = %v, want *RegistryError", err)
	}
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("err = %v, want wrapped ErrNotConnected", err)
	}
}

func TestDecodeTrace_SortsOutOfOrderRows(t *testing.T) {
	lu1, lu2 := 1756000200.0, 1756000100.0
	rows := []historyRow{
		{S: "2", LU: &lu1},
		{S: "1", LU: &lu2},
	}
	trace := decodeTrace(rows)
	if len(trace) != 2 {
		t.Fatalf("len = %d", len(trace))
	}
	if trace[0].Value != 1 || trace[1].Value != 2 {
		t.Errorf("trace not sorted: %+v", trace)
	}
}

func TestRegistryError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &RegistryError{Op: "label list", Err: inner}
	if !errors.Is(err, inner) {
		t.Error("RegistryError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "label list") {
		t.Errorf("Error() = %q", err.Error())
	}
}
