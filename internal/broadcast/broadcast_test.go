package broadcast

import "testing"

type fakeSender struct {
	sent map[string][]any
}

func newFakeSender() *fakeSender { return &fakeSender{sent: map[string][]any{}} }

func (f *fakeSender) Send(sessionID string, msg any) {
	f.sent[sessionID] = append(f.sent[sessionID], msg)
}

func TestSendToPlayer(t *testing.T) {
	fs := newFakeSender()
	e := New(fs)
	e.SendToPlayer("a", "hello")
	if len(fs.sent["a"]) != 1 {
		t.Fatalf("expected one message to a, got %d", len(fs.sent["a"]))
	}
}

func TestBroadcastToRoomExcludes(t *testing.T) {
	fs := newFakeSender()
	e := New(fs)
	e.BroadcastToRoom([]string{"a", "b", "c"}, "msg", "b")
	if len(fs.sent["b"]) != 0 {
		t.Fatal("excluded session should not receive message")
	}
	if len(fs.sent["a"]) != 1 || len(fs.sent["c"]) != 1 {
		t.Fatal("non-excluded sessions should receive the message")
	}
}

func TestBroadcastToTeam(t *testing.T) {
	fs := newFakeSender()
	e := New(fs)
	e.BroadcastToTeam([]string{"x", "y"}, "team msg")
	if len(fs.sent["x"]) != 1 || len(fs.sent["y"]) != 1 {
		t.Fatal("expected both team members to receive the message")
	}
}
