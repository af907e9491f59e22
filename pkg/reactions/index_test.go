package reactions_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heartlink/pkg/models"
	"heartlink/pkg/reactions"
)

type fakeAPI struct {
	fetch    []models.Reaction
	fetchErr error
	addErr   error
	added    []models.Reaction
}

func (f *fakeAPI) FetchReactions(context.Context, string, string) ([]models.Reaction, error) {
	return f.fetch, f.fetchErr
}

func (f *fakeAPI) AddReaction(_ context.Context, r models.Reaction) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, r)
	return nil
}

func TestLoadGroupsByMessage(t *testing.T) {
	api := &fakeAPI{fetch: []models.Reaction{
		{MessageID: "m1", UserID: "a", Emoji: "❤️"},
		{MessageID: "m1", UserID: "b", Emoji: "😂"},
		{MessageID: "m2", UserID: "a", Emoji: "👍"},
	}}
	idx := reactions.NewIndex(api)

	require.NoError(t, idx.Load(context.Background(), "a", "b"))
	assert.Len(t, idx.ForMessage("m1"), 2)
	assert.Len(t, idx.ForMessage("m2"), 1)
	assert.Empty(t, idx.ForMessage("m3"))
}

func TestLoadReplacesPreviousConversation(t *testing.T) {
	api := &fakeAPI{fetch: []models.Reaction{{MessageID: "m1", UserID: "a", Emoji: "❤️"}}}
	idx := reactions.NewIndex(api)
	require.NoError(t, idx.Load(context.Background(), "a", "b"))

	api.fetch = nil
	require.NoError(t, idx.Load(context.Background(), "a", "c"))
	assert.Empty(t, idx.ForMessage("m1"), "switching conversations discards the old index")
}

func TestLoadFailureClearsAndReports(t *testing.T) {
	api := &fakeAPI{fetch: []models.Reaction{{MessageID: "m1", UserID: "a", Emoji: "❤️"}}}
	idx := reactions.NewIndex(api)
	require.NoError(t, idx.Load(context.Background(), "a", "b"))

	api.fetchErr = errors.New("boom")
	assert.Error(t, idx.Load(context.Background(), "a", "b"))
	assert.Empty(t, idx.ForMessage("m1"))
}

func TestAddAppendsOnSuccessOnly(t *testing.T) {
	api := &fakeAPI{}
	idx := reactions.NewIndex(api)

	r := models.Reaction{MessageID: "m1", UserID: "a", Emoji: "🔥"}
	require.NoError(t, idx.Add(context.Background(), r))
	assert.Equal(t, []models.Reaction{r}, idx.ForMessage("m1"))

	api.addErr = errors.New("rejected")
	assert.Error(t, idx.Add(context.Background(), models.Reaction{MessageID: "m1", UserID: "a", Emoji: "💀"}))
	assert.Len(t, idx.ForMessage("m1"), 1, "failed add must not appear locally")
}

func TestRemoveIsLocalOnly(t *testing.T) {
	api := &fakeAPI{}
	idx := reactions.NewIndex(api)
	r := models.Reaction{MessageID: "m1", UserID: "a", Emoji: "🔥"}
	require.NoError(t, idx.Add(context.Background(), r))

	assert.True(t, idx.Remove("m1", "a", "🔥"))
	assert.Empty(t, idx.ForMessage("m1"))
	assert.False(t, idx.Remove("m1", "a", "🔥"))
	assert.Len(t, api.added, 1, "unreact must not issue a wire call")
}
