package models

import "testing"

func TestConversationKeyOrderIndependent(t *testing.T) {
	cases := []struct {
		a, b string
		want string
	}{
		{"alice", "bob", "alice_bob"},
		{"bob", "alice", "alice_bob"},
		{"9", "10", "10_9"},
		{"u1", "u1", "u1_u1"},
	}
	for _, tc := range cases {
		got := ConversationKey(tc.a, tc.b)
		if got != tc.want {
			t.Errorf("ConversationKey(%q, %q) = %q, want %q", tc.a, tc.b, got, tc.want)
		}
		if got != ConversationKey(tc.b, tc.a) {
			t.Errorf("ConversationKey(%q, %q) not symmetric", tc.a, tc.b)
		}
	}
}

func TestCounterpart(t *testing.T) {
	m := Message{SenderID: "alice", ReceiverID: "bob"}
	if got := m.Counterpart("alice"); got != "bob" {
		t.Errorf("Counterpart(alice) = %q, want bob", got)
	}
	if got := m.Counterpart("bob"); got != "alice" {
		t.Errorf("Counterpart(bob) = %q, want alice", got)
	}
}
