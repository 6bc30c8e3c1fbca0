package handlers

import (
	"encoding/json"
	"testing"

	"pingme/internal/models"
	"pingme/internal/presence"
)

// nopConn satisfies frameWriter for tests. Frames are inspected by
// reading the client's send channel directly, so nothing runs a pump.
type nopConn struct{}

func (nopConn) WriteMessage(int, []byte) error { return nil }
func (nopConn) Close() error                   { return nil }

func newTestClient(id string) *client {
	return &client{id: id, conn: nopConn{}, send: make(chan []byte, sendBufferSize)}
}

func newTestHub() *Hub {
	return NewHub(presence.NewRegistry())
}

// drain decodes every queued frame for the client.
func drain(t *testing.T, c *client) []models.Event {
	t.Helper()
	var out []models.Event
	for {
		select {
		case data := <-c.send:
			var evt models.Event
			if err := json.Unmarshal(data, &evt); err != nil {
				t.Fatalf("undecodable frame %q: %v", data, err)
			}
			out = append(out, evt)
		default:
			return out
		}
	}
}

func setup(t *testing.T, h *Hub, c *client, identity string) {
	t.Helper()
	raw, _ := json.Marshal(models.Event{Type: models.EventSetup, Identity: identity})
	h.add(c)
	h.HandleEvent(c, raw)
}

func send(t *testing.T, h *Hub, c *client, evt models.Event) {
	t.Helper()
	raw, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	h.HandleEvent(c, raw)
}

func TestSetupBindsAndAnnouncesPresence(t *testing.T) {
	h := newTestHub()
	alice := newTestClient("c-alice")
	setup(t, h, alice, "alice")

	events := drain(t, alice)
	if len(events) != 1 || events[0].Type != models.EventOnlineUsers {
		t.Fatalf("alice got %v, want one onlineUsers snapshot", events)
	}
	if got := events[0].Identities; len(got) != 1 || got[0] != "alice" {
		t.Fatalf("snapshot = %v, want [alice]", got)
	}

	bob := newTestClient("c-bob")
	setup(t, h, bob, "bob")

	// Alice observes bob's arrival; bob must not receive his own
	// userOnline, only the snapshot.
	aliceEvents := drain(t, alice)
	if len(aliceEvents) != 1 || aliceEvents[0].Type != models.EventUserOnline || aliceEvents[0].Identity != "bob" {
		t.Fatalf("alice got %v, want userOnline(bob)", aliceEvents)
	}
	bobEvents := drain(t, bob)
	if len(bobEvents) != 1 || bobEvents[0].Type != models.EventOnlineUsers {
		t.Fatalf("bob got %v, want only the onlineUsers snapshot", bobEvents)
	}
}

func TestUnboundConnectionEventsAreDropped(t *testing.T) {
	h := newTestHub()
	c := newTestClient("c1")
	h.add(c)

	send(t, h, c, models.Event{Type: models.EventJoinChat, Room: "a_b"})
	send(t, h, c, models.Event{
		Type:    models.EventNewMessage,
		Message: &models.Message{ID: "m1", SenderID: "a", ReceiverID: "b", Text: "hi"},
	})
	h.HandleEvent(c, []byte("{not json"))

	if events := drain(t, c); len(events) != 0 {
		t.Fatalf("unbound connection received %v", events)
	}
	if h.presence.IsOnline("a") {
		t.Fatal("dropped events must not touch presence")
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	h := newTestHub()
	alice := newTestClient("c-alice")
	bob := newTestClient("c-bob")
	setup(t, h, alice, "alice")
	setup(t, h, bob, "bob")
	drain(t, alice)
	drain(t, bob)

	room := models.ConversationKey("alice", "bob")
	send(t, h, alice, models.Event{Type: models.EventJoinChat, Room: room})
	send(t, h, alice, models.Event{Type: models.EventJoinChat, Room: room})
	send(t, h, bob, models.Event{Type: models.EventJoinChat, Room: room})

	// A single typing relay reaches alice exactly once even though she
	// joined twice.
	send(t, h, bob, models.Event{Type: models.EventTyping, Room: room})
	events := drain(t, alice)
	if len(events) != 1 || events[0].Type != models.EventTyping || events[0].Identity != "bob" {
		t.Fatalf("alice got %v, want exactly one typing(bob)", events)
	}
}

func TestTypingIsRoomScopedAndExcludesSender(t *testing.T) {
	h := newTestHub()
	alice := newTestClient("c-alice")
	bob := newTestClient("c-bob")
	carol := newTestClient("c-carol")
	setup(t, h, alice, "alice")
	setup(t, h, bob, "bob")
	setup(t, h, carol, "carol")
	drain(t, alice)
	drain(t, bob)
	drain(t, carol)

	room := models.ConversationKey("alice", "bob")
	send(t, h, alice, models.Event{Type: models.EventJoinChat, Room: room})
	send(t, h, bob, models.Event{Type: models.EventJoinChat, Room: room})

	send(t, h, alice, models.Event{Type: models.EventTyping, Room: room})

	if events := drain(t, alice); len(events) != 0 {
		t.Fatalf("sender received own typing event: %v", events)
	}
	bobEvents := drain(t, bob)
	if len(bobEvents) != 1 || bobEvents[0].Type != models.EventTyping {
		t.Fatalf("bob got %v, want typing", bobEvents)
	}
	if events := drain(t, carol); len(events) != 0 {
		t.Fatalf("typing leaked outside the conversation room: %v", events)
	}
}

func TestNewMessageRoutedToRecipientPersonalRoom(t *testing.T) {
	h := newTestHub()
	alice := newTestClient("c-alice")
	bob := newTestClient("c-bob")
	setup(t, h, alice, "alice")
	setup(t, h, bob, "bob")
	drain(t, alice)
	drain(t, bob)

	// Bob never joined the conversation room; delivery is keyed by his
	// identity room, so he still gets the message.
	msg := models.Message{ID: "m1", SenderID: "alice", ReceiverID: "bob", Text: "hi"}
	send(t, h, alice, models.Event{Type: models.EventNewMessage, Message: &msg})

	bobEvents := drain(t, bob)
	if len(bobEvents) != 1 || bobEvents[0].Type != models.EventMessageReceived {
		t.Fatalf("bob got %v, want messageReceived", bobEvents)
	}
	if got := bobEvents[0].Message; got == nil || got.ID != "m1" {
		t.Fatalf("payload = %v, want message m1", got)
	}
	if events := drain(t, alice); len(events) != 0 {
		t.Fatalf("sender received echo of own message: %v", events)
	}
}

func TestMalformedEventsDoNotCloseConnection(t *testing.T) {
	h := newTestHub()
	alice := newTestClient("c-alice")
	bob := newTestClient("c-bob")
	setup(t, h, alice, "alice")
	setup(t, h, bob, "bob")
	drain(t, alice)
	drain(t, bob)

	send(t, h, alice, models.Event{Type: models.EventNewMessage})                   // no message
	send(t, h, alice, models.Event{Type: models.EventTyping})                       // no room
	send(t, h, alice, models.Event{Type: models.EventMessageRead, Room: "a_b"})     // no message id
	send(t, h, alice, models.Event{Type: "bogus"})                                  // unknown
	h.HandleEvent(alice, []byte("%%%"))                                             // not json

	// The connection still works afterwards.
	msg := models.Message{ID: "m2", SenderID: "alice", ReceiverID: "bob", Text: "still here"}
	send(t, h, alice, models.Event{Type: models.EventNewMessage, Message: &msg})
	if events := drain(t, bob); len(events) != 1 || events[0].Message.ID != "m2" {
		t.Fatalf("bob got %v, want m2 after malformed traffic", events)
	}
}

func TestMessageReadRelayedWithinRoom(t *testing.T) {
	h := newTestHub()
	alice := newTestClient("c-alice")
	bob := newTestClient("c-bob")
	setup(t, h, alice, "alice")
	setup(t, h, bob, "bob")
	drain(t, alice)
	drain(t, bob)

	room := models.ConversationKey("alice", "bob")
	send(t, h, alice, models.Event{Type: models.EventJoinChat, Room: room})
	send(t, h, bob, models.Event{Type: models.EventJoinChat, Room: room})

	send(t, h, bob, models.Event{Type: models.EventMessageRead, Room: room, MessageID: "m1"})

	events := drain(t, alice)
	if len(events) != 1 || events[0].Type != models.EventMessageRead {
		t.Fatalf("alice got %v, want messageRead", events)
	}
	if events[0].MessageID != "m1" || events[0].Identity != "bob" {
		t.Fatalf("messageRead payload = %+v", events[0])
	}
}

func TestDisconnectBroadcastsOfflineExactlyOnce(t *testing.T) {
	h := newTestHub()
	alice := newTestClient("c-alice")
	bob := newTestClient("c-bob")
	carol := newTestClient("c-carol")
	setup(t, h, alice, "alice")
	setup(t, h, bob, "bob")
	setup(t, h, carol, "carol")
	drain(t, alice)
	drain(t, bob)
	drain(t, carol)

	h.drop(alice)

	for _, c := range []*client{bob, carol} {
		events := drain(t, c)
		offlines := 0
		snapshots := 0
		for _, evt := range events {
			switch evt.Type {
			case models.EventUserOffline:
				if evt.Identity != "alice" {
					t.Fatalf("userOffline for %q, want alice", evt.Identity)
				}
				offlines++
			case models.EventOnlineUsers:
				snapshots++
				for _, id := range evt.Identities {
					if id == "alice" {
						t.Fatal("snapshot still contains alice after disconnect")
					}
				}
			}
		}
		if offlines != 1 || snapshots != 1 {
			t.Fatalf("conn %s observed %d userOffline and %d snapshots, want 1 and 1", c.id, offlines, snapshots)
		}
	}
	if h.presence.IsOnline("alice") {
		t.Fatal("alice still online after drop")
	}
}

func TestEnqueueAfterShutdownIsDropped(t *testing.T) {
	c := newTestClient("c1")
	c.shutdown()
	c.shutdown() // idempotent

	// A broadcast that copied its targets before the connection was
	// dropped may still deliver afterwards; the frame is discarded.
	c.enqueue([]byte("late frame"))

	if _, ok := <-c.send; ok {
		t.Fatal("frame enqueued after shutdown")
	}
}

func TestBroadcastAfterDropDoesNotPanic(t *testing.T) {
	h := newTestHub()
	alice := newTestClient("c-alice")
	bob := newTestClient("c-bob")
	setup(t, h, alice, "alice")
	setup(t, h, bob, "bob")
	drain(t, alice)
	drain(t, bob)

	h.drop(bob)
	drain(t, alice)

	// Bob is gone but traffic addressed to him keeps flowing.
	msg := models.Message{ID: "m1", SenderID: "alice", ReceiverID: "bob", Text: "late"}
	send(t, h, alice, models.Event{Type: models.EventNewMessage, Message: &msg})
	h.sendTo(bob, models.Event{Type: models.EventOnlineUsers})

	if events := drain(t, alice); len(events) != 0 {
		t.Fatalf("alice got %v, want nothing", events)
	}
}

func TestRepeatedSetupIsDropped(t *testing.T) {
	h := newTestHub()
	alice := newTestClient("c-alice")
	watcher := newTestClient("c-watch")
	setup(t, h, alice, "alice")
	setup(t, h, watcher, "bob")
	drain(t, alice)
	drain(t, watcher)

	// A second setup carrying another identity must not rebind the
	// connection or touch presence.
	send(t, h, alice, models.Event{Type: models.EventSetup, Identity: "mallory"})

	if events := drain(t, alice); len(events) != 0 {
		t.Fatalf("repeated setup produced %v", events)
	}
	if h.presence.IsOnline("mallory") {
		t.Fatal("repeated setup registered a second identity")
	}

	// Messages for mallory never reach the connection bound to alice.
	msg := models.Message{ID: "m1", SenderID: "bob", ReceiverID: "mallory", Text: "hi"}
	send(t, h, watcher, models.Event{Type: models.EventNewMessage, Message: &msg})
	if events := drain(t, alice); len(events) != 0 {
		t.Fatalf("alice received mallory's traffic: %v", events)
	}

	// Dropping the connection takes alice offline; nothing lingers.
	h.drop(alice)
	if h.presence.IsOnline("alice") {
		t.Fatal("alice stuck online after her only connection dropped")
	}
	if got := h.presence.Snapshot(); len(got) != 1 || got[0] != "bob" {
		t.Fatalf("snapshot = %v, want [bob]", got)
	}
	events := drain(t, watcher)
	offline := 0
	for _, evt := range events {
		if evt.Type == models.EventUserOffline && evt.Identity == "alice" {
			offline++
		}
	}
	if offline != 1 {
		t.Fatalf("observed %d userOffline(alice), want 1", offline)
	}
}

func TestReconnectSupersedesOldConnection(t *testing.T) {
	h := newTestHub()
	old := newTestClient("c-old")
	watcher := newTestClient("c-watch")
	setup(t, h, old, "alice")
	setup(t, h, watcher, "bob")
	drain(t, old)
	drain(t, watcher)

	// Same identity reconnects before the old transport is reaped.
	fresh := newTestClient("c-new")
	setup(t, h, fresh, "alice")
	drain(t, fresh)
	drain(t, watcher)

	// Reaping the superseded connection must not announce alice offline.
	h.drop(old)
	for _, evt := range drain(t, watcher) {
		if evt.Type == models.EventUserOffline {
			t.Fatalf("stale drop broadcast userOffline(%s)", evt.Identity)
		}
	}

	// Messages still reach alice through the fresh connection.
	msg := models.Message{ID: "m1", SenderID: "bob", ReceiverID: "alice", Text: "yo"}
	send(t, h, watcher, models.Event{Type: models.EventNewMessage, Message: &msg})
	if events := drain(t, fresh); len(events) != 1 || events[0].Message.ID != "m1" {
		t.Fatalf("fresh connection got %v, want m1", events)
	}
}
