package transport

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type recordedCall struct {
	method string
	args   []any
}

type recordingEngine struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (r *recordingEngine) record(method string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedCall{method: method, args: args})
}

func (r *recordingEngine) JoinQueue(connID, playerID, tier, mode string) {
	r.record("JoinQueue", connID, playerID, tier, mode)
}
func (r *recordingEngine) LeaveQueue(connID string) { r.record("LeaveQueue", connID) }
func (r *recordingEngine) RequestState(connID, battleID string) {
	r.record("RequestState", connID, battleID)
}
func (r *recordingEngine) SubmitRoast(connID, battleID string, round int, roast, mode string) {
	r.record("SubmitRoast", connID, battleID, round, roast, mode)
}
func (r *recordingEngine) EmojiReaction(connID, battleID, emoji string) {
	r.record("EmojiReaction", connID, battleID, emoji)
}
func (r *recordingEngine) Disconnect(connID string) { r.record("Disconnect", connID) }

func (r *recordingEngine) waitCall(t *testing.T, method string) recordedCall {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		for _, c := range r.calls {
			if c.method == method {
				r.mu.Unlock()
				return c
			}
		}
		r.mu.Unlock()
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", method)
	return recordedCall{}
}

func dialTestServer(t *testing.T) (*Server, *recordingEngine, *websocket.Conn) {
	t.Helper()
	srv := NewServer()
	eng := &recordingEngine{}
	srv.SetEngine(eng)

	hs := httptest.NewServer(srv)
	t.Cleanup(hs.Close)

	url := "ws" + strings.TrimPrefix(hs.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close(websocket.StatusNormalClosure, "done") })
	return srv, eng, ws
}

func writeFrame(t *testing.T, ws *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, ws, Frame{Event: event, Data: raw}); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func TestInboundDispatch(t *testing.T) {
	_, eng, ws := dialTestServer(t)

	writeFrame(t, ws, "join_queue", joinQueueData{PlayerID: "p1", Tier: "Bronze", Mode: "quick"})
	call := eng.waitCall(t, "JoinQueue")
	if call.args[1] != "p1" || call.args[2] != "Bronze" || call.args[3] != "quick" {
		t.Fatalf("JoinQueue args = %v", call.args)
	}
	connID := call.args[0].(string)
	if connID == "" {
		t.Fatal("empty conn id")
	}

	writeFrame(t, ws, "submit_roast", submitRoastData{BattleID: "b1", Round: 2, Roast: "weak", Mode: "quick"})
	call = eng.waitCall(t, "SubmitRoast")
	if call.args[0] != connID || call.args[1] != "b1" || call.args[2] != 2 || call.args[3] != "weak" {
		t.Fatalf("SubmitRoast args = %v", call.args)
	}

	writeFrame(t, ws, "emoji_reaction", emojiReactionData{BattleID: "b1", Emoji: "🔥"})
	call = eng.waitCall(t, "EmojiReaction")
	if call.args[2] != "🔥" {
		t.Fatalf("EmojiReaction args = %v", call.args)
	}
}

func TestOutboundDelivery(t *testing.T) {
	srv, eng, ws := dialTestServer(t)

	writeFrame(t, ws, "join_queue", joinQueueData{PlayerID: "p1", Tier: "Bronze", Mode: "quick"})
	connID := eng.waitCall(t, "JoinQueue").args[0].(string)

	type payload struct {
		BattleID string `json:"battleId"`
	}
	srv.Send(connID, "matched", payload{BattleID: "b-9"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var got struct {
		Event string  `json:"event"`
		Data  payload `json:"data"`
	}
	if err := wsjson.Read(ctx, ws, &got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Event != "matched" || got.Data.BattleID != "b-9" {
		t.Fatalf("frame = %+v", got)
	}
}

func TestDisconnectNotifiesEngine(t *testing.T) {
	srv, eng, ws := dialTestServer(t)

	writeFrame(t, ws, "join_queue", joinQueueData{PlayerID: "p1", Tier: "Bronze", Mode: "quick"})
	eng.waitCall(t, "JoinQueue")

	_ = ws.Close(websocket.StatusNormalClosure, "leaving")
	eng.waitCall(t, "Disconnect")

	deadline := time.Now().Add(2 * time.Second)
	for srv.ConnCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("ConnCount = %d after close", srv.ConnCount())
		}
		time.Sleep(2 * time.Millisecond)
	}
}
