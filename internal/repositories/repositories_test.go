package repositories

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatroom-service/internal/apperr"
	"chatroom-service/internal/db"
	"chatroom-service/internal/models"
)

func setupDB(t *testing.T) *sqlx.DB {
	t.Helper()
	database, err := db.Connect(context.Background(), db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestCreatePublicThenGet(t *testing.T) {
	ctx := context.Background()
	repo := NewRoomRepo(setupDB(t))

	for _, title := range []string{"General", "Random", "日本語のへや"} {
		created, err := repo.CreatePublic(ctx, title)
		require.NoError(t, err)

		got, err := repo.GetPublic(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, title, got.Title)
		assert.Equal(t, created.ID, got.ID)
	}
}

func TestCreatePublicDuplicateTitleConflicts(t *testing.T) {
	ctx := context.Background()
	repo := NewRoomRepo(setupDB(t))

	_, err := repo.CreatePublic(ctx, "General")
	require.NoError(t, err)

	_, err = repo.CreatePublic(ctx, "General")
	assert.ErrorIs(t, err, ErrRoomTitleTaken)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestCreatePublicRejectsBlankTitle(t *testing.T) {
	repo := NewRoomRepo(setupDB(t))
	_, err := repo.CreatePublic(context.Background(), "   ")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestGetMissingRoomsNotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewRoomRepo(setupDB(t))

	_, err := repo.GetPublic(ctx, 99)
	assert.ErrorIs(t, err, ErrRoomNotFound)
	_, err = repo.GetPrivate(ctx, 99)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, repo.SetActive(ctx, 99, false), ErrRoomNotFound)
}

func TestFindOrCreatePrivateIsOrderIndependent(t *testing.T) {
	ctx := context.Background()
	repo := NewRoomRepo(setupDB(t))

	pairs := [][2]int{{1, 2}, {7, 3}, {10, 11}}
	for _, p := range pairs {
		ab, err := repo.FindOrCreatePrivate(ctx, p[0], p[1])
		require.NoError(t, err)
		ba, err := repo.FindOrCreatePrivate(ctx, p[1], p[0])
		require.NoError(t, err)

		assert.Equal(t, ab.ID, ba.ID, "pair %v", p)
		assert.True(t, ab.HasParticipant(p[0]))
		assert.True(t, ab.HasParticipant(p[1]))
		assert.Less(t, ab.User1ID, ab.User2ID)
	}
}

func TestFindOrCreatePrivateRejectsSelf(t *testing.T) {
	repo := NewRoomRepo(setupDB(t))
	_, err := repo.FindOrCreatePrivate(context.Background(), 4, 4)
	assert.ErrorIs(t, err, ErrSelfChat)
}

func TestDeactivationKeepsHistoryAndReturnsExistingRoom(t *testing.T) {
	ctx := context.Background()
	database := setupDB(t)
	rooms := NewRoomRepo(database)
	messages := NewMessageRepo(database)

	room, err := rooms.FindOrCreatePrivate(ctx, 1, 2)
	require.NoError(t, err)
	require.True(t, room.IsActive)

	_, err = messages.Append(ctx, room.Ref(), 1, "hi")
	require.NoError(t, err)

	require.NoError(t, rooms.SetActive(ctx, room.ID, false))

	again, err := rooms.FindOrCreatePrivate(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, room.ID, again.ID)
	assert.False(t, again.IsActive)

	page, err := messages.Page(ctx, room.Ref(), 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "hi", page.Messages[0].Content)
}

func TestListActivePrivate(t *testing.T) {
	ctx := context.Background()
	repo := NewRoomRepo(setupDB(t))

	a, err := repo.FindOrCreatePrivate(ctx, 1, 2)
	require.NoError(t, err)
	b, err := repo.FindOrCreatePrivate(ctx, 3, 1)
	require.NoError(t, err)
	_, err = repo.FindOrCreatePrivate(ctx, 2, 3)
	require.NoError(t, err)
	require.NoError(t, repo.SetActive(ctx, a.ID, false))

	list, err := repo.ListActivePrivate(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].RoomID)
	assert.Equal(t, 3, list[0].FriendID)
}

func TestAppendRejectsBlankMessages(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepo(setupDB(t))
	room := models.RoomRef{Kind: models.RoomPublic, ID: 1}

	for _, body := range []string{"", " ", "\t\n  "} {
		_, err := repo.Append(ctx, room, 1, body)
		assert.ErrorIs(t, err, ErrEmptyMessage)
		assert.ErrorIs(t, err, apperr.ErrValidation)
	}
	count, err := repo.Count(ctx, room)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPageWalksHistoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepo(setupDB(t))
	room := models.RoomRef{Kind: models.RoomPublic, ID: 1}
	other := models.RoomRef{Kind: models.RoomPrivate, ID: 1}

	const total = 23
	for i := 0; i < total; i++ {
		_, err := repo.Append(ctx, room, 1, fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}
	_, err := repo.Append(ctx, other, 1, "elsewhere")
	require.NoError(t, err)

	first, err := repo.Page(ctx, room, 1, 5)
	require.NoError(t, err)
	require.Len(t, first.Messages, 5)
	assert.Equal(t, "m22", first.Messages[0].Content)
	assert.Equal(t, 2, first.NextPage)

	seen := map[int]bool{}
	var lastSeq int64 = total + 1
	page := 1
	for {
		p, err := repo.Page(ctx, room, page, 5)
		require.NoError(t, err)
		if p.Exhausted {
			assert.Equal(t, page, p.NextPage)
			break
		}
		assert.Equal(t, page+1, p.NextPage)
		for _, m := range p.Messages {
			assert.False(t, seen[m.ID], "duplicate message %d", m.ID)
			seen[m.ID] = true
			assert.Less(t, m.Seq, lastSeq)
			lastSeq = m.Seq
			assert.Equal(t, room, m.Room())
		}
		page = p.NextPage
	}
	assert.Len(t, seen, total)
	assert.Equal(t, 6, page)
}

func TestPageOfEmptyRoomIsExhausted(t *testing.T) {
	repo := NewMessageRepo(setupDB(t))
	p, err := repo.Page(context.Background(), models.RoomRef{Kind: models.RoomPublic, ID: 5}, 1, 10)
	require.NoError(t, err)
	assert.True(t, p.Exhausted)
	assert.Empty(t, p.Messages)
	assert.Equal(t, 1, p.NextPage)
}

func TestPageRejectsNonPositiveArguments(t *testing.T) {
	repo := NewMessageRepo(setupDB(t))
	room := models.RoomRef{Kind: models.RoomPublic, ID: 1}
	_, err := repo.Page(context.Background(), room, 0, 10)
	assert.ErrorIs(t, err, ErrInvalidPage)
	_, err = repo.Page(context.Background(), room, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidPage)
}

func TestAppendTimestampsNeverGoBackwards(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepo(setupDB(t))
	room := models.RoomRef{Kind: models.RoomPublic, ID: 1}

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := []time.Time{base, base.Add(-time.Minute), base.Add(-time.Hour), base.Add(time.Second)}
	i := 0
	repo.now = func() time.Time {
		ts := clock[i]
		i++
		return ts
	}

	var msgs []models.Message
	for range clock {
		m, err := repo.Append(ctx, room, 1, "tick")
		require.NoError(t, err)
		msgs = append(msgs, m)
	}

	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt))
		assert.Equal(t, msgs[i-1].Seq+1, msgs[i].Seq)
	}
	assert.True(t, msgs[2].CreatedAt.Equal(base))

	p, err := repo.Page(ctx, room, 1, 10)
	require.NoError(t, err)
	require.Len(t, p.Messages, 4)
	assert.Equal(t, msgs[3].ID, p.Messages[0].ID)
	assert.Equal(t, msgs[2].ID, p.Messages[1].ID)
	assert.Equal(t, msgs[0].ID, p.Messages[3].ID)
}

func TestConcurrentAppendsProduceDistinctSequences(t *testing.T) {
	ctx := context.Background()
	repo := NewMessageRepo(setupDB(t))
	room := models.RoomRef{Kind: models.RoomPublic, ID: 9}

	const writers, perWriter = 4, 10
	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, err := repo.Append(ctx, room, w+1, fmt.Sprintf("w%d-%d", w, i)); err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	p, err := repo.Page(ctx, room, 1, writers*perWriter)
	require.NoError(t, err)
	require.Len(t, p.Messages, writers*perWriter)
	for i, m := range p.Messages {
		assert.Equal(t, int64(writers*perWriter-i), m.Seq)
	}
}

func TestFindPrivateNeverCreates(t *testing.T) {
	ctx := context.Background()
	repo := NewRoomRepo(setupDB(t))

	_, err := repo.FindPrivate(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrRoomNotFound)
	list, err := repo.ListActivePrivate(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, list)

	created, err := repo.FindOrCreatePrivate(ctx, 2, 1)
	require.NoError(t, err)
	found, err := repo.FindPrivate(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = repo.FindPrivate(ctx, 3, 3)
	assert.ErrorIs(t, err, ErrSelfChat)
}
