package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	svc, err := NewService(mr.Addr(), "")
	require.NoError(t, err)

	return svc, mr
}

func sampleSummary(code string, updatedAt time.Time) RoomSummary {
	return RoomSummary{
		Code:       code,
		Name:       "Friday Game Night",
		Mode:       "board",
		Status:     "playing",
		Public:     true,
		MaxPlayers: 4,
		Players: []RoomSummaryPlayer{
			{ID: "p1", Name: "Ada", IsHost: true, JoinedAt: updatedAt},
		},
		CreatedAt: updatedAt,
		UpdatedAt: updatedAt,
	}
}

func TestNewService(t *testing.T) {
	svc, mr := newTestService(t)
	defer mr.Close()
	defer func() { _ = svc.Close() }()

	assert.NotNil(t, svc.Client())
	assert.NoError(t, svc.Ping(context.Background()))
}

func TestSaveAndListRooms(t *testing.T) {
	svc, mr := newTestService(t)
	defer mr.Close()
	defer func() { _ = svc.Close() }()

	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	require.NoError(t, svc.SaveRoom(ctx, sampleSummary("ABCD", now)))
	require.NoError(t, svc.SaveRoom(ctx, sampleSummary("WXYZ", now)))

	rooms, err := svc.ListOpenRooms(ctx)
	require.NoError(t, err)
	assert.Len(t, rooms, 2)

	codes := []string{rooms[0].Code, rooms[1].Code}
	assert.ElementsMatch(t, []string{"ABCD", "WXYZ"}, codes)
}

func TestSaveRoomOverwritesExisting(t *testing.T) {
	svc, mr := newTestService(t)
	defer mr.Close()
	defer func() { _ = svc.Close() }()

	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	summary := sampleSummary("ABCD", now)
	require.NoError(t, svc.SaveRoom(ctx, summary))

	summary.Status = "finished"
	summary.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, svc.SaveRoom(ctx, summary))

	rooms, err := svc.ListOpenRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "finished", rooms[0].Status)
}

func TestDeleteRoom(t *testing.T) {
	svc, mr := newTestService(t)
	defer mr.Close()
	defer func() { _ = svc.Close() }()

	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	require.NoError(t, svc.SaveRoom(ctx, sampleSummary("ABCD", now)))
	require.NoError(t, svc.DeleteRoom(ctx, "ABCD"))

	rooms, err := svc.ListOpenRooms(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestCleanupStale(t *testing.T) {
	svc, mr := newTestService(t)
	defer mr.Close()
	defer func() { _ = svc.Close() }()

	ctx := context.Background()
	old := time.Unix(1700000000, 0).UTC()
	fresh := time.Now().UTC()

	require.NoError(t, svc.SaveRoom(ctx, sampleSummary("STALE", old)))
	require.NoError(t, svc.SaveRoom(ctx, sampleSummary("FRESH", fresh)))

	count, err := svc.CleanupStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	rooms, err := svc.ListOpenRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "FRESH", rooms[0].Code)
}

func TestNilServiceIsNoOp(t *testing.T) {
	var svc *Service
	ctx := context.Background()

	assert.NoError(t, svc.SaveRoom(ctx, sampleSummary("ABCD", time.Now())))
	assert.NoError(t, svc.DeleteRoom(ctx, "ABCD"))
	rooms, err := svc.ListOpenRooms(ctx)
	assert.NoError(t, err)
	assert.Nil(t, rooms)
	count, err := svc.CleanupStale(ctx, time.Hour)
	assert.NoError(t, err)
	assert.Zero(t, count)
	assert.NoError(t, svc.Ping(ctx))
	assert.NoError(t, svc.Close())
}

func TestDegradedStoreIsGraceful(t *testing.T) {
	svc, mr := newTestService(t)
	mr.Close()

	ctx := context.Background()

	err := svc.SaveRoom(ctx, sampleSummary("ABCD", time.Now()))
	assert.NoError(t, err, "persistence failures must be swallowed, not surfaced")

	_, err = svc.ListOpenRooms(ctx)
	assert.NoError(t, err)
}
