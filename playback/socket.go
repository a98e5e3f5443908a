package playback

import (
	"context"
	"log"
	"time"

	"github.com/drewmudry/captioncast/captions"
	"github.com/drewmudry/captioncast/models"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Message types sent to the client.
const (
	MessageInstructions = "instructions"
	MessageItem         = "item"
	MessageEnded        = "ended"
	MessageDone         = "done"
	MessageError        = "error"
)

// Message is a server to client frame.
type Message struct {
	Type         string                 `json:"type"`
	Instructions []captions.Instruction `json:"instructions,omitempty"`
	Index        int                    `json:"index"`
	Item         *models.Item           `json:"item,omitempty"`
	AudioURL     string                 `json:"audio_url,omitempty"`
	Duration     float64                `json:"duration,omitempty"`
	Error        string                 `json:"error,omitempty"`
}

// Command is a client to server frame.
type Command struct {
	Action   string  `json:"action"`
	Position float64 `json:"position"`
}

// socket serializes writes to a websocket connection. Gorilla connections
// allow one concurrent writer, so every message goes through writeLoop.
type socket struct {
	conn   *websocket.Conn
	out    chan Message
	closed chan struct{}
}

func newSocket(conn *websocket.Conn) *socket {
	return &socket{
		conn:   conn,
		out:    make(chan Message, 64),
		closed: make(chan struct{}),
	}
}

// Apply makes the socket a captions.Display.
func (s *socket) Apply(ins []captions.Instruction) {
	s.send(Message{Type: MessageInstructions, Instructions: ins, Index: -1})
}

func (s *socket) send(m Message) {
	select {
	case s.out <- m:
	case <-s.closed:
	}
}

func (s *socket) writeLoop(ctx context.Context) {
	defer close(s.closed)
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(m); err != nil {
				log.Printf("[playback] write: %v", err)
				return
			}
		}
	}
}

// readLoop hands every command to fn until the client goes away.
func (s *socket) readLoop(fn func(Command)) {
	for {
		var cmd Command
		if err := s.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[playback] read: %v", err)
			}
			return
		}
		fn(cmd)
	}
}
