package stub

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servimatch/chatwire/internal/config"
	"github.com/servimatch/chatwire/internal/protocol"
)

func newTestServer(t *testing.T, token string) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(config.StubConfig{Token: token, JanitorSchedule: "@every 5m", IdleTTLMinutes: 60})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func dialWS(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func join(t *testing.T, ws *websocket.Conn, sessionID int64, token string) {
	t.Helper()
	frame, err := protocol.NewFrame(protocol.EventJoin, protocol.JoinPayload{SessionID: sessionID, Token: token})
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(frame))
}

func readFrame(t *testing.T, ws *websocket.Conn) protocol.Frame {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	var f protocol.Frame
	require.NoError(t, ws.ReadJSON(&f))
	return f
}

func TestJoinDeliversHistoryOnce(t *testing.T) {
	_, srv := newTestServer(t, "tok")
	ws := dialWS(t, srv, "")
	join(t, ws, 5, "tok")

	f := readFrame(t, ws)
	assert.Equal(t, protocol.EventHistory, f.Event)

	var batch []protocol.ChatMessage
	require.NoError(t, json.Unmarshal(f.Payload, &batch))
	assert.Empty(t, batch)
}

func TestEchoReachesBothClients(t *testing.T) {
	_, srv := newTestServer(t, "tok")

	requester := dialWS(t, srv, "?role=requester")
	join(t, requester, 5, "tok")
	readFrame(t, requester) // history

	provider := dialWS(t, srv, "?role=provider")
	join(t, provider, 5, "tok")
	readFrame(t, provider) // history

	out, err := protocol.NewFrame(protocol.EventMessage, protocol.OutgoingMessage{SessionID: 5, Content: "hello"})
	require.NoError(t, err)
	require.NoError(t, requester.WriteJSON(out))

	for _, ws := range []*websocket.Conn{requester, provider} {
		f := readFrame(t, ws)
		require.Equal(t, protocol.EventMessage, f.Event)
		var m protocol.ChatMessage
		require.NoError(t, json.Unmarshal(f.Payload, &m))
		assert.Equal(t, int64(1), m.ID)
		assert.Equal(t, protocol.SenderRequester, m.Sender)
		assert.Equal(t, "hello", m.Content)
	}
}

func TestLateJoinerSeesHistory(t *testing.T) {
	_, srv := newTestServer(t, "tok")

	first := dialWS(t, srv, "")
	join(t, first, 9, "tok")
	readFrame(t, first)

	out, _ := protocol.NewFrame(protocol.EventMessage, protocol.OutgoingMessage{SessionID: 9, Content: "before you joined"})
	require.NoError(t, first.WriteJSON(out))
	readFrame(t, first) // own echo

	late := dialWS(t, srv, "")
	join(t, late, 9, "tok")
	f := readFrame(t, late)
	require.Equal(t, protocol.EventHistory, f.Event)

	var batch []protocol.ChatMessage
	require.NoError(t, json.Unmarshal(f.Payload, &batch))
	require.Len(t, batch, 1)
	assert.Equal(t, "before you joined", batch[0].Content)
}

func TestJoinWithBadToken(t *testing.T) {
	_, srv := newTestServer(t, "secret")
	ws := dialWS(t, srv, "")
	join(t, ws, 5, "wrong")

	f := readFrame(t, ws)
	require.Equal(t, protocol.EventError, f.Event)
	var p protocol.ErrorPayload
	require.NoError(t, json.Unmarshal(f.Payload, &p))
	assert.Contains(t, p.Message, "invalid token")
}

func TestEmptyMessageRejectedWithErrorEvent(t *testing.T) {
	_, srv := newTestServer(t, "tok")
	ws := dialWS(t, srv, "")
	join(t, ws, 5, "tok")
	readFrame(t, ws)

	out, _ := protocol.NewFrame(protocol.EventMessage, protocol.OutgoingMessage{SessionID: 5})
	require.NoError(t, ws.WriteJSON(out))

	f := readFrame(t, ws)
	assert.Equal(t, protocol.EventError, f.Event)
}

func TestAttachmentMessageGetsSentinelContent(t *testing.T) {
	_, srv := newTestServer(t, "tok")
	ws := dialWS(t, srv, "")
	join(t, ws, 5, "tok")
	readFrame(t, ws)

	out, _ := protocol.NewFrame(protocol.EventMessage, protocol.OutgoingMessage{
		SessionID: 5,
		Attachment: &protocol.AttachmentPayload{
			Filename: "roof.jpg", MimeType: "image/jpg", Payload: "/9j/4AAQ", Size: 6,
		},
	})
	require.NoError(t, ws.WriteJSON(out))

	f := readFrame(t, ws)
	require.Equal(t, protocol.EventMessage, f.Event)
	var m protocol.ChatMessage
	require.NoError(t, json.Unmarshal(f.Payload, &m))
	assert.Equal(t, "Arquivo anexado", m.Content)
	assert.NotEmpty(t, m.Metadata)
}

func TestQuoteEndpoint(t *testing.T) {
	_, srv := newTestServer(t, "tok")

	body := bytes.NewBufferString(`{"amount":"350.50","note":"materials included"}`)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/requests/42/quotes", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer tok")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestQuoteEndpointRejectsNonPositive(t *testing.T) {
	_, srv := newTestServer(t, "tok")

	body := bytes.NewBufferString(`{"amount":"0"}`)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/requests/42/quotes", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer tok")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestRoomsPrune(t *testing.T) {
	rs := newRooms()
	r := rs.get(1)
	r.lastActive = time.Now().Add(-2 * time.Hour)
	rs.get(2) // fresh

	assert.Equal(t, 1, rs.prune(time.Hour))
	assert.Equal(t, 1, rs.count())
}
