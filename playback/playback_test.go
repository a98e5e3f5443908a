package playback

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/drewmudry/captioncast/captions"
	"github.com/drewmudry/captioncast/models"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeItems struct {
	items map[uint]models.Item
	order []uint
}

func (f *fakeItems) Load(_ context.Context, id uint) (*models.Item, []byte, error) {
	it, ok := f.items[id]
	if !ok {
		return nil, nil, errors.New("not found")
	}
	return &it, []byte("mp3"), nil
}

func (f *fakeItems) Playlist(_ context.Context, name string) ([]models.Item, error) {
	var out []models.Item
	for _, id := range f.order {
		out = append(out, models.Item{ID: id, Playlist: name})
	}
	return out, nil
}

func newServer(t *testing.T, items *fakeItems, duration float64) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewHandler(items, nil)
	h.Probe = func([]byte) (float64, error) { return duration, nil }
	h.FrameInterval = 5 * time.Millisecond

	r := gin.New()
	h.Register(r.Group("/api"))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

// readUntil reads messages until match returns true, returning everything read.
func readUntil(t *testing.T, conn *websocket.Conn, match func(Message) bool) []Message {
	t.Helper()
	var seen []Message
	for {
		var m Message
		require.NoError(t, conn.ReadJSON(&m))
		seen = append(seen, m)
		if match(m) {
			return seen
		}
	}
}

func hasOp(m Message, op captions.Op, playing bool) bool {
	for _, ins := range m.Instructions {
		if ins.Op == op && (op != captions.OpControl || ins.Playing == playing) {
			return true
		}
	}
	return false
}

func TestCaptionsSocketPlaysAndPauses(t *testing.T) {
	items := &fakeItems{items: map[uint]models.Item{7: {ID: 7, Text: "one two three four"}}}
	srv := newServer(t, items, 30)
	conn := dial(t, srv, "/api/items/7/captions?granularity=word")

	msgs := readUntil(t, conn, func(m Message) bool { return hasOp(m, captions.OpActivate, false) })
	require.Equal(t, MessageItem, msgs[0].Type)
	assert.Equal(t, "/api/items/7/audio", msgs[0].AudioURL)
	assert.Equal(t, 30.0, msgs[0].Duration)
	require.Equal(t, MessageInstructions, msgs[1].Type)
	assert.Equal(t, captions.OpRender, msgs[1].Instructions[0].Op)
	assert.Equal(t, []string{"one", "two", "three", "four"}, msgs[1].Instructions[0].Units)

	require.NoError(t, conn.WriteJSON(Command{Action: "pause"}))
	readUntil(t, conn, func(m Message) bool { return hasOp(m, captions.OpControl, false) })

	require.NoError(t, conn.WriteJSON(Command{Action: "rewind"}))
	msgs = readUntil(t, conn, func(m Message) bool { return m.Type == MessageError })
	assert.Contains(t, msgs[len(msgs)-1].Error, "rewind")
}

func TestCaptionsSocketReportsEnd(t *testing.T) {
	items := &fakeItems{items: map[uint]models.Item{1: {ID: 1, Text: "short"}}}
	srv := newServer(t, items, 0.1)
	conn := dial(t, srv, "/api/items/1/captions")

	msgs := readUntil(t, conn, func(m Message) bool { return m.Type == MessageEnded })
	var cleared bool
	for _, m := range msgs {
		cleared = cleared || hasOp(m, captions.OpClear, false)
	}
	assert.True(t, cleared)
}

func TestCaptionsUnknownItem(t *testing.T) {
	srv := newServer(t, &fakeItems{}, 1)
	resp, err := http.Get(srv.URL + "/api/items/3/captions")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRadioSkipsBrokenItems(t *testing.T) {
	items := &fakeItems{
		items: map[uint]models.Item{1: {ID: 1, Text: "first"}, 3: {ID: 3, Text: "third"}},
		order: []uint{1, 2, 3},
	}
	srv := newServer(t, items, 0.1)
	conn := dial(t, srv, "/api/playlists/calm/radio")

	msgs := readUntil(t, conn, func(m Message) bool { return m.Type == MessageDone })
	var played []int
	for _, m := range msgs {
		if m.Type == MessageItem {
			played = append(played, m.Index)
		}
	}
	assert.Equal(t, []int{0, 2}, played)
}

func TestRadioEmptyPlaylist(t *testing.T) {
	srv := newServer(t, &fakeItems{}, 1)
	resp, err := http.Get(srv.URL + "/api/playlists/none/radio")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
