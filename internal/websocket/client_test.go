package websocket

import (
	"testing"

	"github.com/chatcoins/internal/domain"
)

func TestClientWants(t *testing.T) {
	event := domain.Event{Type: domain.EventTheft, ActorID: "alice", TargetID: "bob"}

	unfiltered := &Client{follows: map[string]bool{}}
	if !unfiltered.wants(event) {
		t.Fatal("client with no filters should receive every event")
	}

	following := &Client{follows: map[string]bool{"alice": true}}
	if !following.wants(event) {
		t.Fatal("client following the actor should receive the event")
	}

	victim := &Client{follows: map[string]bool{"bob": true}}
	if !victim.wants(event) {
		t.Fatal("client following the target should receive the event")
	}

	other := &Client{follows: map[string]bool{"carol": true}}
	if other.wants(event) {
		t.Fatal("client following an unrelated actor should not receive the event")
	}
}
