package observe_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/plus3/ecosim/observe"
	"github.com/plus3/ecosim/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, hub *observe.Hub) string {
	t.Helper()
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func waitForClients(t *testing.T, hub *observe.Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Clients() == n }, 2*time.Second, 5*time.Millisecond)
}

func TestHubPublish(t *testing.T) {
	hub := observe.NewHub()
	defer hub.Close()
	url := serve(t, hub)

	a := dial(t, url)
	b := dial(t, url)
	waitForClients(t, hub, 2)

	frame := observe.Frame{
		RunID:  uuid.New(),
		Seed:   7,
		Census: sim.Census{Step: 60, Time: 1, Creatures: 12, Trees: 4},
		Births: 2,
	}
	require.NoError(t, hub.Publish(frame))

	for _, conn := range []*websocket.Conn{a, b} {
		var got observe.Frame
		require.NoError(t, conn.ReadJSON(&got))
		assert.Equal(t, frame, got)
	}
}

func TestHubReplaysLatestFrame(t *testing.T) {
	hub := observe.NewHub()
	defer hub.Close()
	url := serve(t, hub)

	frame := observe.Frame{RunID: uuid.New(), Census: sim.Census{Step: 120}}
	require.NoError(t, hub.Publish(frame))

	conn := dial(t, url)
	var got observe.Frame
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, frame, got)
}

func TestHubClientLifecycle(t *testing.T) {
	hub := observe.NewHub()
	url := serve(t, hub)

	t.Run("disconnect is noticed", func(t *testing.T) {
		conn := dial(t, url)
		waitForClients(t, hub, 1)
		conn.Close()
		waitForClients(t, hub, 0)
	})

	t.Run("close disconnects clients", func(t *testing.T) {
		conn := dial(t, url)
		waitForClients(t, hub, 1)

		hub.Close()
		assert.Equal(t, 0, hub.Clients())
		_, _, err := conn.ReadMessage()
		assert.Error(t, err)
	})

	t.Run("closed hub rejects clients", func(t *testing.T) {
		conn := dial(t, url)
		_, _, err := conn.ReadMessage()
		assert.Error(t, err)
		assert.Equal(t, 0, hub.Clients())
	})
}

func TestHubAttach(t *testing.T) {
	settings := sim.DefaultSettings()
	settings.Creatures.InitialCount = 5
	settings.Trees.InitialCount = 3
	s, err := sim.New(settings, sim.WithSampleEvery(10))
	require.NoError(t, err)
	require.NoError(t, s.Populate())

	hub := observe.NewHub()
	defer hub.Close()
	hub.Attach(s)
	url := serve(t, hub)
	conn := dial(t, url)
	waitForClients(t, hub, 1)

	for range 25 {
		require.NoError(t, s.Step())
	}

	for _, step := range []int64{10, 20} {
		var got observe.Frame
		require.NoError(t, conn.ReadJSON(&got))
		assert.Equal(t, s.RunID, got.RunID)
		assert.Equal(t, settings.Seed, got.Seed)
		assert.Equal(t, step, got.Census.Step)
	}
	assert.Zero(t, hub.Dropped())
}

func TestNewFrame(t *testing.T) {
	s, err := sim.New(sim.DefaultSettings())
	require.NoError(t, err)
	require.NoError(t, s.Populate())
	require.NoError(t, s.Step())

	f := observe.NewFrame(s)
	assert.Equal(t, s.RunID, f.RunID)
	assert.Equal(t, int64(1), f.Census.Step)
	assert.Equal(t, s.Census.Latest(), f.Census)
}
