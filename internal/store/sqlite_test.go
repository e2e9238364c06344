package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestSQLiteUserLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	user, err := s.CreateUser(ctx, "Alice", "alice@example.com", "hash-a")
	require.NoError(t, err)
	require.NotZero(t, user.ID)
	assert.Equal(t, "Alice", user.Name)

	byID, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, user.Email, byID.Email)
	assert.Equal(t, "hash-a", byID.PasswordHash)

	byEmail, err := s.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, user.ID, byEmail.ID)

	missing, err := s.GetUserByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing, "missing user must be (nil, nil)")

	exists, err := s.EmailExists(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.EmailExists(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSQLiteSearchUsers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	alice, err := s.CreateUser(ctx, "Alice", "alice@example.com", "h")
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, "Alicia", "alicia@example.com", "h")
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, "Bob", "bob@example.com", "h")
	require.NoError(t, err)

	// The searcher never appears in their own results.
	found, err := s.SearchUsers(ctx, "ali", alice.ID, 20)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Alicia", found[0].Name)

	found, err = s.SearchUsers(ctx, "bob@", alice.ID, 20)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Bob", found[0].Name)
}

func TestSQLiteRoomIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, err := s.CreateUser(ctx, "Alice", "alice@example.com", "h")
	require.NoError(t, err)
	b, err := s.CreateUser(ctx, "Bob", "bob@example.com", "h")
	require.NoError(t, err)

	room1, err := s.CreateOrGetRoom(ctx, a.ID, b.ID)
	require.NoError(t, err)
	require.NotNil(t, room1)

	// Same pair in either order maps to the same room.
	room2, err := s.CreateOrGetRoom(ctx, b.ID, a.ID)
	require.NoError(t, err)
	require.NotNil(t, room2)
	assert.Equal(t, room1.ID, room2.ID)

	for _, id := range []int64{a.ID, b.ID} {
		ok, err := s.IsParticipant(ctx, room1.ID, id)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := s.IsParticipant(ctx, room1.ID, 999)
	require.NoError(t, err)
	assert.False(t, ok)

	missing, err := s.GetRoom(ctx, "998_999")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteMessagesNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, _ := s.CreateUser(ctx, "Alice", "alice@example.com", "h")
	b, _ := s.CreateUser(ctx, "Bob", "bob@example.com", "h")
	room, err := s.CreateOrGetRoom(ctx, a.ID, b.ID)
	require.NoError(t, err)

	m1, err := s.InsertMessage(ctx, room.ID, a.ID, "primeira")
	require.NoError(t, err)
	m2, err := s.InsertMessage(ctx, room.ID, b.ID, "segunda")
	require.NoError(t, err)
	assert.Nil(t, m1.ReadAt)

	msgs, err := s.ListMessages(ctx, room.ID, 50, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, m2.ID, msgs[0].ID, "newest message comes first")
	assert.Equal(t, m1.ID, msgs[1].ID)

	// Pagination.
	page, err := s.ListMessages(ctx, room.ID, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, m1.ID, page[0].ID)
}

func TestSQLiteMarkRead(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, _ := s.CreateUser(ctx, "Alice", "alice@example.com", "h")
	b, _ := s.CreateUser(ctx, "Bob", "bob@example.com", "h")
	room, err := s.CreateOrGetRoom(ctx, a.ID, b.ID)
	require.NoError(t, err)

	_, err = s.InsertMessage(ctx, room.ID, a.ID, "de alice")
	require.NoError(t, err)
	_, err = s.InsertMessage(ctx, room.ID, a.ID, "de alice 2")
	require.NoError(t, err)
	_, err = s.InsertMessage(ctx, room.ID, b.ID, "de bob")
	require.NoError(t, err)

	// Bob has two unread, Alice one.
	n, err := s.CountUnreadForRoom(ctx, room.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	total, err := s.CountUnreadForUser(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	// Bob reading the room marks only Alice's messages.
	marked, err := s.MarkMessagesRead(ctx, room.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), marked)

	n, err = s.CountUnreadForRoom(ctx, room.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Bob's own message to Alice stays unread.
	n, err = s.CountUnreadForRoom(ctx, room.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Second pass is a no-op.
	marked, err = s.MarkMessagesRead(ctx, room.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), marked)

	msgs, err := s.ListMessages(ctx, room.ID, 50, 0)
	require.NoError(t, err)
	for _, m := range msgs {
		if m.SenderID == a.ID {
			assert.NotNil(t, m.ReadAt)
		} else {
			assert.Nil(t, m.ReadAt)
		}
	}
}

func TestSQLiteListConversations(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, _ := s.CreateUser(ctx, "Alice", "alice@example.com", "h")
	b, _ := s.CreateUser(ctx, "Bob", "bob@example.com", "h")
	c, _ := s.CreateUser(ctx, "Carol", "carol@example.com", "h")

	roomAB, err := s.CreateOrGetRoom(ctx, a.ID, b.ID)
	require.NoError(t, err)
	roomAC, err := s.CreateOrGetRoom(ctx, a.ID, c.ID)
	require.NoError(t, err)

	_, err = s.InsertMessage(ctx, roomAB.ID, b.ID, "oi de bob")
	require.NoError(t, err)
	require.NoError(t, s.TouchRoom(ctx, roomAB.ID))

	convs, err := s.ListConversations(ctx, a.ID, 20, 0)
	require.NoError(t, err)
	require.Len(t, convs, 2)

	// Most recent activity first, so the Bob room leads.
	assert.Equal(t, roomAB.ID, convs[0].RoomID)
	assert.Equal(t, b.ID, convs[0].OtherUser.ID)
	require.NotNil(t, convs[0].LastMessage)
	assert.Equal(t, "oi de bob", *convs[0].LastMessage)
	assert.Equal(t, 1, convs[0].Unread)

	assert.Equal(t, roomAC.ID, convs[1].RoomID)
	assert.Equal(t, c.ID, convs[1].OtherUser.ID)
	assert.Nil(t, convs[1].LastMessage)
	assert.Equal(t, 0, convs[1].Unread)

	// Bob sees only his one conversation, with no unread.
	convs, err = s.ListConversations(ctx, b.ID, 20, 0)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, a.ID, convs[0].OtherUser.ID)
	assert.Equal(t, 0, convs[0].Unread)
}
