package wire

import "testing"

func TestDecodeValidEnvelope(t *testing.T) {
	env, wireErr := Decode([]byte(`{"type":"mc_move","x":1,"y":2}`))
	if wireErr != nil {
		t.Fatalf("unexpected error: %v", wireErr)
	}
	if env.Type != "mc_move" {
		t.Fatalf("expected mc_move, got %q", env.Type)
	}
	var payload struct {
		X, Y int
	}
	if err := env.Unmarshal(&payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.X != 1 || payload.Y != 2 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestDecodeInvalidJSON(t *testing.T) {
	_, wireErr := Decode([]byte(`{not json`))
	if wireErr == nil || wireErr.Code != CodeInvalidJSON {
		t.Fatalf("expected INVALID_JSON, got %v", wireErr)
	}
}

func TestDecodeMissingType(t *testing.T) {
	_, wireErr := Decode([]byte(`{"foo":"bar"}`))
	if wireErr == nil || wireErr.Code != CodeInvalidFormat {
		t.Fatalf("expected INVALID_FORMAT, got %v", wireErr)
	}
}

func TestDecodeNonStringType(t *testing.T) {
	_, wireErr := Decode([]byte(`{"type":123}`))
	if wireErr == nil || wireErr.Code != CodeInvalidFormat {
		t.Fatalf("expected INVALID_FORMAT, got %v", wireErr)
	}
}

func TestDecodeEmptyType(t *testing.T) {
	_, wireErr := Decode([]byte(`{"type":""}`))
	if wireErr == nil || wireErr.Code != CodeInvalidFormat {
		t.Fatalf("expected INVALID_FORMAT, got %v", wireErr)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Fatalf("expected unchanged string, got %q", got)
	}
	if got := Truncate("abcdefghij", 5); got != "abcde" {
		t.Fatalf("expected truncation, got %q", got)
	}
}

func TestErrorStringer(t *testing.T) {
	e := NewError(CodeRoomNotFound, "no such room")
	if e.Error() != "ROOM_NOT_FOUND: no such room" {
		t.Fatalf("unexpected error string: %q", e.Error())
	}
}
