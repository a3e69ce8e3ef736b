package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mamadbah2/toolstock/internal/domain/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreCurrent())
}

func TestLifecycle(t *testing.T) {
	store := NewStore(time.Minute, nil)
	defer store.Close()

	_, ok := store.Get(1)
	assert.False(t, ok)

	state := store.Begin(1, KindAddInstrument, "name")
	assert.Equal(t, Step("name"), state.Step)
	assert.True(t, store.Active(1))
	assert.False(t, store.Active(2), "sessions are per user")

	advanced, err := store.Advance(1, "model", models.Draft{Name: "Drill"})
	require.NoError(t, err)
	assert.Equal(t, Step("model"), advanced.Step)

	got, ok := store.Get(1)
	require.True(t, ok)
	assert.Equal(t, "Drill", got.Draft.Name)

	assert.True(t, store.End(1))
	assert.False(t, store.End(1))
	assert.False(t, store.Active(1))

	_, err = store.Advance(1, "model", models.Draft{})
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestBeginOverwrites(t *testing.T) {
	store := NewStore(time.Minute, nil)
	defer store.Close()

	store.Begin(7, KindAddInstrument, "name")
	_, err := store.Advance(7, "quantity", models.Draft{Name: "Drill", Model: "X"})
	require.NoError(t, err)

	store.Begin(7, KindAddInstrument, "name")
	got, ok := store.Get(7)
	require.True(t, ok)
	assert.Equal(t, Step("name"), got.Step)
	assert.Empty(t, got.Draft.Name)
	assert.Equal(t, 1, store.Len())

	edit := store.BeginEdit(7, "awaiting_amount", 3)
	assert.Equal(t, KindEditAmount, edit.Kind)
	got, _ = store.Get(7)
	assert.Equal(t, 3, got.Target)
}

func TestIdleSessionsExpire(t *testing.T) {
	store := NewStore(50*time.Millisecond, nil)
	defer store.Close()

	store.Begin(1, KindAddInstrument, "name")
	assert.Eventually(t, func() bool { return !store.Active(1) }, 2*time.Second, 10*time.Millisecond)
}

func TestBrowseStore(t *testing.T) {
	browse := NewBrowseStore(time.Minute)
	defer browse.Close()

	assert.Equal(t, Browse{}, browse.Get(1))

	browse.AwaitTerm(1)
	assert.True(t, browse.Get(1).AwaitingTerm)
	browse.StopAwaiting(1)
	assert.False(t, browse.Get(1).AwaitingTerm)
	browse.AwaitTerm(1)

	ctx := browse.StartSearch(1, "dri", []int{1, 2})
	assert.False(t, ctx.AwaitingTerm)
	ctx.Page = 1
	browse.Set(1, ctx)

	fresh := browse.StartSearch(1, "saw", []int{3})
	assert.Equal(t, 0, fresh.Page, "a fresh search resets paging")
	assert.Equal(t, []int{3}, browse.Get(1).Matches)

	browse.Clear(1)
	assert.Equal(t, Browse{}, browse.Get(1))
}
