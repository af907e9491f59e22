package restapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heartlink/pkg/models"
	"heartlink/pkg/restapi"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *restapi.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return restapi.New(srv.URL, time.Second)
}

func TestSendMessageEncodesAndDecodes(t *testing.T) {
	reqs := make(chan restapi.SendRequest, 1)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var got restapi.SendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		reqs <- got
		_ = json.NewEncoder(w).Encode(models.Message{
			ID: "srv-1", SenderID: got.SenderID, ReceiverID: got.ReceiverID,
			Content: got.Content, CreatedAt: time.Now().UTC(), TempID: got.TempID,
		})
	})

	msg, err := c.SendMessage(context.Background(), restapi.SendRequest{
		SenderID: "a", ReceiverID: "b", Content: "hello", TempID: "temp-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", msg.ID)
	got := <-reqs
	assert.Equal(t, "temp-1", got.TempID, "the placeholder id rides along on the wire")
	assert.Equal(t, "hello", got.Content)
}

func TestSendMessageBackToBackReusesClient(t *testing.T) {
	// two sends through the same client exercise the pooled request
	// encoding path twice; both bodies must arrive intact
	var mu sync.Mutex
	var bodies []restapi.SendRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req restapi.SendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		bodies = append(bodies, req)
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(models.Message{ID: req.TempID})
	})

	for _, content := range []string{"first of two", "2"} {
		_, err := c.SendMessage(context.Background(), restapi.SendRequest{
			SenderID: "a", ReceiverID: "b", Content: content, TempID: content,
		})
		require.NoError(t, err)
	}
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 2)
	assert.Equal(t, "first of two", bodies[0].Content)
	assert.Equal(t, "2", bodies[1].Content, "a shorter body must not carry residue from the previous encode")
}

func TestFetchMessagesReturnsRawPayload(t *testing.T) {
	payload := `{"messages":[{"id":"1"}]}`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "a", r.URL.Query().Get("user"))
		assert.Equal(t, "b", r.URL.Query().Get("peer"))
		_, _ = w.Write([]byte(payload))
	})

	raw, err := c.FetchMessages(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.JSONEq(t, payload, string(raw), "the payload passes through undecoded")
}

func TestAddReactionTolerates204(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var rx models.Reaction
		require.NoError(t, json.NewDecoder(r.Body).Decode(&rx))
		assert.Equal(t, "m1", rx.MessageID)
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, c.AddReaction(context.Background(), models.Reaction{MessageID: "m1", UserID: "a", Emoji: "🔥"}))
}

func TestNon2xxIsStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusUnprocessableEntity)
	})

	_, err := c.FetchMessages(context.Background(), "a", "b")
	var se *restapi.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnprocessableEntity, se.Code)
}

func TestTransportFailureWrapsErrNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := restapi.New(url, 200*time.Millisecond)
	_, err := c.FetchMessages(context.Background(), "a", "b")
	assert.ErrorIs(t, err, restapi.ErrNetwork)
}

func TestExpiredContextShortCircuits(t *testing.T) {
	c := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Error("no request should reach the server")
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.FetchMessages(ctx, "a", "b")
	assert.Error(t, err)
}
