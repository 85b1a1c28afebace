package transport

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/model"
)

func dialWS(t *testing.T, stack *testStack) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(stack.ws.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	return conn
}

func sendCompress(t *testing.T, conn *websocket.Conn, payload model.CompressPayload) {
	t.Helper()
	msg, err := model.NewMessage(model.MessageTypeCompress, payload)
	require.NoError(t, err)
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func readControl(t *testing.T, conn *websocket.Conn) *model.Message {
	t.Helper()
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, kind)

	var msg model.Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return &msg
}

func TestWebSocketHandler_Compress(t *testing.T) {
	source := noisyPNG(t)
	origin := imageOrigin(t, "image/png", source)
	stack := newTestStack(t, model.DeliveryStreamed)
	conn := dialWS(t, stack)

	for round := 0; round < 2; round++ {
		sendCompress(t, conn, model.CompressPayload{URL: origin.URL + "/a.png", WebP: true, Grayscale: true, Quality: 30})

		begin := readControl(t, conn)
		require.Equal(t, model.MessageTypeBegin, begin.Type)
		var beginPayload model.BeginPayload
		require.NoError(t, begin.ParsePayload(&beginPayload))
		assert.Equal(t, "image/webp", beginPayload.ContentType)
		assert.Equal(t, uint64(len(source)), beginPayload.OriginalSize)

		var image bytes.Buffer
		var end *model.Message
		for end == nil {
			kind, data, err := conn.ReadMessage()
			require.NoError(t, err)
			if kind == websocket.BinaryMessage {
				image.Write(data)
				continue
			}
			var msg model.Message
			require.NoError(t, json.Unmarshal(data, &msg))
			end = &msg
		}

		require.Equal(t, model.MessageTypeEnd, end.Type)
		var endPayload model.EndPayload
		require.NoError(t, end.ParsePayload(&endPayload))
		assert.Equal(t, uint64(image.Len()), endPayload.CompressedSize)
		assert.Equal(t, uint64(bytesSaved(len(source), image.Len())), endPayload.BytesSaved)
		assert.Equal(t, "RIFF", string(image.Bytes()[:4]))
	}
}

func TestWebSocketHandler_Fallback(t *testing.T) {
	origin := newTestOrigin(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	})
	stack := newTestStack(t, model.DeliveryStreamed)
	conn := dialWS(t, stack)

	sendCompress(t, conn, model.CompressPayload{URL: origin.URL + "/gone.png", WebP: true})

	msg := readControl(t, conn)
	require.Equal(t, model.MessageTypeFallback, msg.Type)
	var payload model.FallbackPayload
	require.NoError(t, msg.ParsePayload(&payload))
	assert.Equal(t, origin.URL+"/gone.png", payload.Location)
}

func TestWebSocketHandler_Errors(t *testing.T) {
	stack := newTestStack(t, model.DeliveryStreamed)
	conn := dialWS(t, stack)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	msg := readControl(t, conn)
	assert.Equal(t, model.MessageTypeError, msg.Type)

	sendCompress(t, conn, model.CompressPayload{URL: ""})
	msg = readControl(t, conn)
	require.Equal(t, model.MessageTypeError, msg.Type)
	var payload model.ErrorPayload
	require.NoError(t, msg.ParsePayload(&payload))
	assert.Equal(t, http.StatusBadRequest, payload.Status)

	sendCompress(t, conn, model.CompressPayload{URL: "ht!tp://"})
	msg = readControl(t, conn)
	require.Equal(t, model.MessageTypeError, msg.Type)
	require.NoError(t, msg.ParsePayload(&payload))
	assert.Equal(t, "Invalid URL", payload.Message)
}

func TestWebSocketHandler_ClientCloseCancelsOriginFetch(t *testing.T) {
	started := make(chan struct{}, 1)
	cancelled := make(chan struct{}, 1)
	origin := newTestOrigin(t, func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		select {
		case <-r.Context().Done():
			cancelled <- struct{}{}
		case <-time.After(10 * time.Second):
		}
	})
	stack := newTestStack(t, model.DeliveryStreamed)
	conn := dialWS(t, stack)

	sendCompress(t, conn, model.CompressPayload{URL: origin.URL + "/slow.png", WebP: true})

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("origin was never contacted")
	}
	require.NoError(t, conn.Close())

	start := time.Now()
	select {
	case <-cancelled:
		assert.Less(t, time.Since(start), 2*time.Second)
	case <-time.After(4 * time.Second):
		t.Fatal("origin request outlived the websocket client")
	}
}
