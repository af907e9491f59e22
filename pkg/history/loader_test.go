package history_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heartlink/pkg/history"
	"heartlink/pkg/models"
)

type fakeAPI struct {
	payload []byte
	err     error
}

func (f *fakeAPI) FetchMessages(context.Context, string, string) ([]byte, error) {
	return f.payload, f.err
}

func load(t *testing.T, payload string) []models.Message {
	t.Helper()
	l := history.NewLoader(&fakeAPI{payload: []byte(payload)})
	return l.Load(context.Background(), "a", "b")
}

const twoMessages = `[
	{"id":"2","senderId":"b","receiverId":"a","content":"later","createdAt":"2026-08-01T12:01:00Z"},
	{"id":"1","senderId":"a","receiverId":"b","content":"first","createdAt":"2026-08-01T12:00:00Z"}
]`

func TestLoadBareArray(t *testing.T) {
	out := load(t, twoMessages)
	require.Len(t, out, 2)
	assert.Equal(t, "1", out[0].ID, "result must be sorted ascending by createdAt")
	assert.Equal(t, "2", out[1].ID)
	for _, m := range out {
		assert.Equal(t, models.StatusConfirmed, m.Status)
	}
}

func TestLoadMessagesWrapper(t *testing.T) {
	out := load(t, `{"messages":`+twoMessages+`}`)
	require.Len(t, out, 2)
	assert.Equal(t, "1", out[0].ID)
}

func TestLoadUnknownWrapper(t *testing.T) {
	out := load(t, `{"data":`+twoMessages+`,"total":2}`)
	require.Len(t, out, 2)
}

func TestLoadFiltersForeignPairs(t *testing.T) {
	payload := `[
		{"id":"1","senderId":"a","receiverId":"b","content":"keep","createdAt":"2026-08-01T12:00:00Z"},
		{"id":"x","senderId":"a","receiverId":"c","content":"drop","createdAt":"2026-08-01T12:00:30Z"},
		{"id":"y","senderId":"c","receiverId":"b","content":"drop","createdAt":"2026-08-01T12:00:40Z"},
		{"id":"2","senderId":"b","receiverId":"a","content":"keep","createdAt":"2026-08-01T12:01:00Z"}
	]`
	out := load(t, payload)
	require.Len(t, out, 2, "the collaborator may return a superset; only the pair survives")
	assert.Equal(t, "1", out[0].ID)
	assert.Equal(t, "2", out[1].ID)
}

func TestLoadErrorResolvesEmpty(t *testing.T) {
	l := history.NewLoader(&fakeAPI{err: errors.New("connection refused")})
	out := l.Load(context.Background(), "a", "b")
	assert.Empty(t, out, "a chat with no history is a valid, recoverable state")
}

func TestLoadGarbageResolvesEmpty(t *testing.T) {
	assert.Empty(t, load(t, `"not a message payload"`))
	assert.Empty(t, load(t, `{invalid json`))
}

func TestLoadStaysStableOnEqualTimestamps(t *testing.T) {
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC).Format(time.RFC3339)
	payload := `[
		{"id":"p","senderId":"a","receiverId":"b","content":"one","createdAt":"` + at + `"},
		{"id":"q","senderId":"b","receiverId":"a","content":"two","createdAt":"` + at + `"}
	]`
	out := load(t, payload)
	require.Len(t, out, 2)
	assert.Equal(t, "p", out[0].ID)
	assert.Equal(t, "q", out[1].ID)
}
