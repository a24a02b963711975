package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/warmap/game/catalog"
	"github.com/wricardo/warmap/game/grid"
	"github.com/wricardo/warmap/game/service"
)

func TestNewHub(t *testing.T) {
	hub := NewHub()

	require.NotNil(t, hub)
	assert.NotNil(t, hub.maps)
	assert.NotNil(t, hub.broadcast)
	assert.NotNil(t, hub.register)
	assert.NotNil(t, hub.unregister)
}

func TestHubRegisterClient(t *testing.T) {
	hub := NewHub()
	client := &Client{hub: hub, mapID: "test-map", send: make(chan []byte, 256)}

	hub.registerClient(client)

	assert.True(t, hub.maps["test-map"][client])
	assert.Equal(t, 1, hub.ClientCount("test-map"))
}

func TestHubUnregisterClient(t *testing.T) {
	hub := NewHub()
	client := &Client{hub: hub, mapID: "test-map", send: make(chan []byte, 256)}

	hub.registerClient(client)
	hub.unregisterClient(client)

	_, exists := hub.maps["test-map"]
	assert.False(t, exists, "empty map entry should be removed")

	_, ok := <-client.send
	assert.False(t, ok, "send channel should be closed")

	// a second unregister is harmless
	hub.unregisterClient(client)
}

func TestHubMultipleClientsPerMap(t *testing.T) {
	hub := NewHub()
	a := &Client{hub: hub, mapID: "m1", send: make(chan []byte, 256)}
	b := &Client{hub: hub, mapID: "m1", send: make(chan []byte, 256)}
	c := &Client{hub: hub, mapID: "m2", send: make(chan []byte, 256)}

	hub.registerClient(a)
	hub.registerClient(b)
	hub.registerClient(c)

	assert.Equal(t, 2, hub.ClientCount("m1"))
	assert.Equal(t, 1, hub.ClientCount("m2"))

	hub.broadcastMessage(&Message{MapID: "m1", Event: "ping"})
	assert.Len(t, a.send, 1)
	assert.Len(t, b.send, 1)
	assert.Len(t, c.send, 0)
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub()
	slow := &Client{hub: hub, mapID: "m1", send: make(chan []byte)}
	hub.registerClient(slow)

	hub.broadcastMessage(&Message{MapID: "m1", Event: "ping"})
	assert.Equal(t, 0, hub.ClientCount("m1"))
}

func TestHubBroadcastStateNeverBlocks(t *testing.T) {
	hub := NewHub()
	snap := grid.EmptySnapshot(grid.Dimensions{Width: 2, Height: 2})

	// no Run loop: the queue fills and further updates are dropped
	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer+10; i++ {
			hub.BroadcastState("m1", snap)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("BroadcastState blocked")
	}
	assert.Len(t, hub.broadcast, broadcastBuffer)
}

func TestHubBroadcastState(t *testing.T) {
	hub := NewHub()
	client := &Client{hub: hub, mapID: "m1", send: make(chan []byte, 256)}
	hub.registerClient(client)

	store, err := grid.NewStore(grid.Dimensions{Width: 4, Height: 4})
	require.NoError(t, err)
	store.SetFootprint(1, 1, 1, catalog.Banner)

	hub.BroadcastState("m1", store.Snapshot())
	hub.broadcastMessage(<-hub.broadcast)

	var msg Message
	require.NoError(t, json.Unmarshal(<-client.send, &msg))
	assert.Equal(t, "m1", msg.MapID)
	assert.Equal(t, EventStateUpdate, msg.Event)
	require.NotNil(t, msg.State)
	assert.Equal(t, catalog.Banner, msg.State.Layout.Map[1][1])
	assert.Equal(t, 1, msg.State.Counts[string(catalog.Banner)])
}

func dialHub(t *testing.T, hub *Hub, initial *service.MapState) (*websocket.Conn, func()) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("map"), initial)
	}))

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?map=ws-test"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	return conn, func() {
		conn.Close()
		server.Close()
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestWebSocketLifecycle(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	conn, cleanup := dialHub(t, hub, nil)
	defer cleanup()

	require.Eventually(t, func() bool { return hub.ClientCount("ws-test") == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount("ws-test") == 0 }, time.Second, 10*time.Millisecond)
}

func TestWebSocketReceivesInitialStateAndUpdates(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	empty := grid.EmptySnapshot(grid.Dimensions{Width: 3, Height: 3})
	conn, cleanup := dialHub(t, hub, service.NewMapState("ws-test", empty))
	defer cleanup()

	first := readMessage(t, conn)
	assert.Equal(t, EventState, first.Event)
	require.NotNil(t, first.State)
	assert.Equal(t, 3, first.State.Width)

	require.Eventually(t, func() bool { return hub.ClientCount("ws-test") == 1 }, time.Second, 10*time.Millisecond)

	store, err := grid.NewStore(grid.Dimensions{Width: 3, Height: 3})
	require.NoError(t, err)
	store.SetFootprint(0, 0, 3, catalog.HQ)
	hub.BroadcastState("ws-test", store.Snapshot())
	hub.BroadcastState("other-map", store.Snapshot())

	update := readMessage(t, conn)
	assert.Equal(t, "ws-test", update.MapID)
	assert.Equal(t, EventStateUpdate, update.Event)
	require.Len(t, update.State.Instances, 1)
	assert.Equal(t, catalog.HQ, update.State.Instances[0].Kind)
}

func TestHubStopDisconnectsClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	conn, cleanup := dialHub(t, hub, nil)
	defer cleanup()
	require.Eventually(t, func() bool { return hub.ClientCount("ws-test") == 1 }, time.Second, 10*time.Millisecond)

	hub.Stop()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.ClientCount("ws-test"))
}
