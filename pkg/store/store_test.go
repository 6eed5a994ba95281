package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type snapshot struct {
	Topic string   `json:"topic"`
	Order []string `json:"order"`
}

func TestSession_SaveLoad(t *testing.T) {
	s := openTestStore(t)

	in := snapshot{Topic: "mobile devices", Order: []string{"a", "b"}}
	require.NoError(t, s.SaveSession("sess-1", in))

	var out snapshot
	require.NoError(t, s.LoadSession("sess-1", &out))
	assert.Equal(t, in, out)
}

func TestSession_LoadMissing(t *testing.T) {
	s := openTestStore(t)

	var out snapshot
	err := s.LoadSession("nope", &out)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOrder_SaveLoad(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveOrder("sess-1", []string{"smartphone", "tablet"}))

	order, err := s.LoadOrder("sess-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"smartphone", "tablet"}, order)

	_, err = s.LoadOrder("other")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendInteraction_AssignsIncreasingIDs(t *testing.T) {
	s := openTestStore(t)

	first, err := s.AppendInteraction("sess-1", "Q1?", "A1")
	require.NoError(t, err)
	second, err := s.AppendInteraction("sess-1", "Q2?", "A2")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, first.ID, int64(1), "zero stays the no-interaction sentinel")
	assert.Greater(t, second.ID, first.ID)
	assert.Equal(t, "Q1?", first.SystemQuestion)
	assert.Equal(t, "A1", first.UserAnswer)
	assert.NotZero(t, first.CreatedNS)
}

func TestGetInteractions_SkipsMissingIDs(t *testing.T) {
	s := openTestStore(t)

	first, err := s.AppendInteraction("sess-1", "Q1?", "A1")
	require.NoError(t, err)
	second, err := s.AppendInteraction("sess-1", "Q2?", "A2")
	require.NoError(t, err)

	got, err := s.GetInteractions("sess-1", []int64{first.ID, 99999, second.ID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first.ID, got[0].ID)
	assert.Equal(t, second.ID, got[1].ID)
}

func TestGetInteractions_ScopedBySession(t *testing.T) {
	s := openTestStore(t)

	it, err := s.AppendInteraction("sess-1", "Q?", "A")
	require.NoError(t, err)

	got, err := s.GetInteractions("sess-2", []int64{it.ID})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDeleteSession_RemovesEverything(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveSession("sess-1", snapshot{Topic: "t"}))
	require.NoError(t, s.SaveOrder("sess-1", []string{"a"}))
	it, err := s.AppendInteraction("sess-1", "Q?", "A")
	require.NoError(t, err)

	require.NoError(t, s.DeleteSession("sess-1"))

	var out snapshot
	assert.ErrorIs(t, s.LoadSession("sess-1", &out), ErrNotFound)
	_, err = s.LoadOrder("sess-1")
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := s.GetInteractions("sess-1", []int64{it.ID})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.False(t, s.HasSession("sess-1"))
}

func TestHasSession(t *testing.T) {
	s := openTestStore(t)
	assert.False(t, s.HasSession("sess-1"))

	require.NoError(t, s.SaveSession("sess-1", snapshot{}))
	assert.True(t, s.HasSession("sess-1"))
}
