package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meansend/ladder/pkg/llm"
	"github.com/meansend/ladder/pkg/store"
)

func managerFixture(t *testing.T) (*Manager, *store.Store) {
	t.Helper()
	st, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	client := llm.NewWithAPI(&scriptedModel{}, "", "test-model")
	m := NewManager(client, st, Options{
		Topic:   "mobile devices",
		Stimuli: []string{"smartphone", "tablet"},
	}, 0)
	return m, st
}

func TestManager_Chat_AssignsSessionID(t *testing.T) {
	m, st := managerFixture(t)

	resp, err := m.Chat(context.Background(), "", "smartphone", "Hello", nil)
	require.NoError(t, err)

	assert.NotEmpty(t, resp.Next.SessionID)
	assert.True(t, st.HasSession(resp.Next.SessionID), "snapshot persisted after the turn")
}

func TestManager_Chat_ReusesSession(t *testing.T) {
	m, _ := managerFixture(t)
	ctx := context.Background()

	resp, err := m.Chat(ctx, "", "smartphone", "Hello", nil)
	require.NoError(t, err)
	id := resp.Next.SessionID

	_, err = m.Chat(ctx, id, "smartphone", "I like always being reachable", nil)
	require.NoError(t, err)

	h, err := m.History(id)
	require.NoError(t, err)
	require.Len(t, h.Content, 2)
	assert.Len(t, h.Content[0], 4)
}

func TestManager_Chat_UnknownStimulus(t *testing.T) {
	m, _ := managerFixture(t)

	_, err := m.Chat(context.Background(), "", "toaster", "Hello", nil)
	assert.ErrorIs(t, err, ErrUnknownStimulus)
}

func TestManager_LoadsEvictedSessionFromStore(t *testing.T) {
	m, st := managerFixture(t)
	ctx := context.Background()

	resp, err := m.Chat(ctx, "", "smartphone", "Hello", nil)
	require.NoError(t, err)
	id := resp.Next.SessionID

	// A second manager over the same store sees only the snapshot.
	client := llm.NewWithAPI(&scriptedModel{}, "", "test-model")
	m2 := NewManager(client, st, Options{Topic: "mobile devices", Stimuli: []string{"smartphone", "tablet"}}, time.Minute)

	h, err := m2.History(id)
	require.NoError(t, err)
	require.Len(t, h.Content, 2)
	assert.Len(t, h.Content[0], 2)
}

func TestManager_History_UnknownSession(t *testing.T) {
	m, _ := managerFixture(t)

	_, err := m.History("nope")
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestManager_SaveOrder(t *testing.T) {
	m, st := managerFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, m.SaveOrder("nope", []string{"tablet"}), ErrUnknownSession)

	resp, err := m.Chat(ctx, "", "smartphone", "Hello", nil)
	require.NoError(t, err)
	id := resp.Next.SessionID

	require.NoError(t, m.SaveOrder(id, []string{"tablet", "smartphone"}))
	order, err := st.LoadOrder(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"tablet", "smartphone"}, order)

	// The transcript follows the saved order.
	h, err := m.History(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"tablet", "smartphone"}, h.Order)
	assert.Empty(t, h.Content[0])
	assert.Len(t, h.Content[1], 2)
}

func TestManager_Messages(t *testing.T) {
	m, _ := managerFixture(t)
	ctx := context.Background()

	resp, err := m.Chat(ctx, "", "smartphone", "Hello", nil)
	require.NoError(t, err)

	page, err := m.Messages(resp.Next.SessionID, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalMessages)

	_, err = m.Messages("nope", 0, 10)
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestManager_Delete(t *testing.T) {
	m, st := managerFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, m.Delete("nope"), ErrUnknownSession)

	resp, err := m.Chat(ctx, "", "smartphone", "Hello", nil)
	require.NoError(t, err)
	id := resp.Next.SessionID

	require.NoError(t, m.Delete(id))
	assert.False(t, st.HasSession(id))
	_, err = m.History(id)
	assert.ErrorIs(t, err, ErrUnknownSession)
}
