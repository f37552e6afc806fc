package reconnect

import (
	"testing"
	"time"
)

func TestIssueAndConsume(t *testing.T) {
	b := NewBroker(time.Minute)
	tok := b.Issue("sess-1")
	sid, ok := b.Consume(tok.Value)
	if !ok || sid != "sess-1" {
		t.Fatalf("expected successful consume of sess-1, got ok=%v sid=%q", ok, sid)
	}
}

func TestConsumeTwiceFails(t *testing.T) {
	b := NewBroker(time.Minute)
	tok := b.Issue("sess-1")
	if _, ok := b.Consume(tok.Value); !ok {
		t.Fatal("expected first consume to succeed")
	}
	if _, ok := b.Consume(tok.Value); ok {
		t.Fatal("expected second consume of the same token to fail")
	}
}

func TestConsumeExpiredFails(t *testing.T) {
	b := NewBroker(-time.Second) // already expired on issue
	tok := b.Issue("sess-1")
	if _, ok := b.Consume(tok.Value); ok {
		t.Fatal("expected expired token to fail consumption")
	}
}

func TestConsumeUnknownFails(t *testing.T) {
	b := NewBroker(time.Minute)
	if _, ok := b.Consume("does-not-exist"); ok {
		t.Fatal("expected unknown token to fail")
	}
}

func TestRotateInvalidatesOldIssuesNew(t *testing.T) {
	b := NewBroker(time.Minute)
	oldTok := b.Issue("sess-1")
	newTok := b.Rotate(oldTok.Value, "sess-1")
	if newTok.Value == oldTok.Value {
		t.Fatal("expected a distinct rotated token value")
	}
	if _, ok := b.Consume(oldTok.Value); ok {
		t.Fatal("old token should be invalid after rotation")
	}
	if _, ok := b.Consume(newTok.Value); !ok {
		t.Fatal("rotated token should be valid")
	}
}

func TestCleanupExpired(t *testing.T) {
	b := NewBroker(-time.Second)
	b.Issue("a")
	b.Issue("b")
	if b.Count() != 2 {
		t.Fatalf("expected 2 tokens tracked, got %d", b.Count())
	}
	removed := b.CleanupExpired()
	if removed != 2 {
		t.Fatalf("expected to remove 2 expired tokens, got %d", removed)
	}
	if b.Count() != 0 {
		t.Fatal("expected all expired tokens removed")
	}
}
