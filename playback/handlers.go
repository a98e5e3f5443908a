// Package playback streams caption highlighting to browsers over websockets.
// The browser plays the audio; the server keeps a clock-driven session in
// step with it and sends display instructions.
package playback

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/drewmudry/captioncast/audio"
	"github.com/drewmudry/captioncast/captions"
	"github.com/drewmudry/captioncast/models"
	"github.com/drewmudry/captioncast/timing"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ItemSource loads saved items and their audio.
type ItemSource interface {
	Load(ctx context.Context, id uint) (*models.Item, []byte, error)
	Playlist(ctx context.Context, name string) ([]models.Item, error)
}

type Handler struct {
	Items   ItemSource
	Aligner timing.Aligner
	// Probe returns the audio duration in seconds.
	Probe         func([]byte) (float64, error)
	Clock         captions.Clock
	FrameInterval time.Duration
}

func NewHandler(items ItemSource, aligner timing.Aligner) *Handler {
	if aligner == nil {
		aligner = timing.Uniform{}
	}
	return &Handler{Items: items, Aligner: aligner, Probe: audio.Duration}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/items/:id/captions", h.Captions)
	r.GET("/playlists/:name/radio", h.Radio)
}

// Captions plays one item's captions over a websocket.
func (h *Handler) Captions(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return
	}
	g := granularity(c)

	cfg, item, err := h.prepare(c.Request.Context(), uint(id), g)
	if err != nil {
		log.Printf("[playback] prepare item %d: %v", id, err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not available"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[playback] upgrade: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sock := newSocket(conn)
	go sock.writeLoop(ctx)
	ticker := captions.NewTicker(h.FrameInterval)
	go ticker.Run(ctx)

	sock.send(itemMessage(0, item, cfg.Player.Duration()))
	cfg.Display = sock
	cfg.Frames = ticker
	cfg.OnEnded = func() { sock.send(Message{Type: MessageEnded}) }

	coord := captions.NewCoordinator()
	session, err := coord.StartSession(cfg)
	if err != nil {
		sock.send(Message{Type: MessageError, Error: err.Error()})
		return
	}
	defer coord.Release(session)

	sock.readLoop(func(cmd Command) {
		if err := control(session, cmd); err != nil {
			sock.send(Message{Type: MessageError, Error: err.Error()})
		}
	})
}

// Radio plays a playlist back to back over a websocket.
func (h *Handler) Radio(c *gin.Context) {
	name := c.Param("name")
	list, err := h.Items.Playlist(c.Request.Context(), name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load playlist"})
		return
	}
	if len(list) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Playlist is empty"})
		return
	}
	g := granularity(c)
	loop := c.Query("loop") == "true"

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[playback] upgrade: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sock := newSocket(conn)
	go sock.writeLoop(ctx)
	ticker := captions.NewTicker(h.FrameInterval)
	go ticker.Run(ctx)

	radio := captions.NewRadio(captions.NewCoordinator(), len(list), func(ctx context.Context, index int) (captions.SessionConfig, error) {
		cfg, item, err := h.prepare(ctx, list[index].ID, g)
		if err != nil {
			return cfg, err
		}
		sock.send(itemMessage(index, item, cfg.Player.Duration()))
		cfg.Display = sock
		cfg.Frames = ticker
		cfg.OnEnded = func() { sock.send(Message{Type: MessageEnded, Index: index}) }
		return cfg, nil
	})
	radio.Loop = loop
	radio.OnDone = func() { sock.send(Message{Type: MessageDone}) }
	radio.Start(ctx)
	defer radio.Stop()

	sock.readLoop(func(cmd Command) {
		if cmd.Action == "stop" {
			radio.Stop()
			return
		}
		session, _ := radio.Current()
		if session == nil {
			return
		}
		if err := control(session, cmd); err != nil {
			sock.send(Message{Type: MessageError, Error: err.Error()})
		}
	})
}

func (h *Handler) prepare(ctx context.Context, id uint, g captions.Granularity) (captions.SessionConfig, *models.Item, error) {
	item, data, err := h.Items.Load(ctx, id)
	if err != nil {
		return captions.SessionConfig{}, nil, err
	}
	duration, err := h.Probe(data)
	if err != nil {
		return captions.SessionConfig{}, nil, fmt.Errorf("%w: %v", captions.ErrInvalidAudioSource, err)
	}
	words, err := h.Aligner.Align(ctx, item.Text, data, duration)
	if err != nil {
		return captions.SessionConfig{}, nil, fmt.Errorf("align item %d: %w", id, err)
	}
	return captions.SessionConfig{
		Text:        item.Text,
		Player:      captions.NewPlayerWithDuration(duration, h.Clock),
		Timings:     words,
		Granularity: g,
	}, item, nil
}

func control(s *captions.Session, cmd Command) error {
	switch cmd.Action {
	case "play":
		return s.Play()
	case "pause":
		s.Pause()
	case "toggle":
		return s.Toggle()
	case "stop":
		s.Stop()
	case "seek":
		s.Player().Seek(cmd.Position)
	default:
		return fmt.Errorf("unknown action %q", cmd.Action)
	}
	return nil
}

func granularity(c *gin.Context) captions.Granularity {
	if c.Query("granularity") == "word" {
		return captions.ByWord
	}
	return captions.ByLine
}

func itemMessage(index int, item *models.Item, duration float64) Message {
	return Message{
		Type:     MessageItem,
		Index:    index,
		Item:     item,
		AudioURL: fmt.Sprintf("/api/items/%d/audio", item.ID),
		Duration: duration,
	}
}
