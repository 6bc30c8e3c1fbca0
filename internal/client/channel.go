package client

import (
	"log"
	"sync"

	"pingme/internal/models"

	"github.com/fasthttp/websocket"
)

// Channel is the client end of the event channel. It binds itself with
// a setup event on dial and pumps inbound events into the store.
type Channel struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	store   *Store
	self    string
}

// DialChannel connects to the ws endpoint (e.g. ws://host:3001/ws),
// sends the setup handshake and starts the read loop. The returned
// Channel is installed as the store's emitter.
func DialChannel(url, self string, store *Store) (*Channel, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	ch := &Channel{conn: conn, store: store, self: self}
	if err := ch.Emit(models.Event{Type: models.EventSetup, Identity: self}); err != nil {
		conn.Close()
		return nil, err
	}
	store.SetEmitter(ch)
	go ch.readLoop()
	return ch, nil
}

// Emit writes one event. Writes are serialized: the websocket does not
// allow concurrent writers.
func (ch *Channel) Emit(evt models.Event) error {
	ch.writeMu.Lock()
	defer ch.writeMu.Unlock()
	return ch.conn.WriteJSON(evt)
}

func (ch *Channel) Close() error {
	return ch.conn.Close()
}

func (ch *Channel) readLoop() {
	for {
		var evt models.Event
		if err := ch.conn.ReadJSON(&evt); err != nil {
			ch.store.HandleDisconnect()
			return
		}
		ch.dispatch(evt)
	}
}

func (ch *Channel) dispatch(evt models.Event) {
	switch evt.Type {
	case models.EventMessageReceived:
		if evt.Message == nil {
			log.Printf("dropping messageReceived without message body")
			return
		}
		ch.store.HandleMessageReceived(*evt.Message)
	case models.EventTyping:
		ch.store.HandleTyping(evt.Room, evt.Identity)
	case models.EventStopTyping:
		ch.store.HandleStopTyping(evt.Room, evt.Identity)
	case models.EventUserOnline:
		ch.store.HandleUserOnline(evt.Identity)
	case models.EventUserOffline:
		ch.store.HandleUserOffline(evt.Identity)
	case models.EventOnlineUsers:
		ch.store.HandleOnlineUsers(evt.Identities)
	case models.EventMessageRead:
		// Read receipts are relayed but not yet rendered anywhere.
	default:
		log.Printf("ignoring unknown channel event %q", evt.Type)
	}
}
