package docstore

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRoom struct {
	RoomID       string           `dynamodbav:"roomId"`
	MemberIDs    []string         `dynamodbav:"memberIds,stringset,omitempty"`
	IsGroup      bool             `dynamodbav:"isGroup"`
	LastTS       int64            `dynamodbav:"lastMessageTimestamp"`
	UnreadCounts map[string]int64 `dynamodbav:"unreadCounts"`
}

func putRoom(t *testing.T, s Store, room testRoom) {
	t.Helper()
	item, err := Encode(room)
	require.NoError(t, err)
	require.NoError(t, s.Set(context.Background(), Doc("chatrooms", room.RoomID), item))
}

func getRoom(t *testing.T, s Store, id string) testRoom {
	t.Helper()
	item, err := s.Get(context.Background(), Doc("chatrooms", id))
	require.NoError(t, err)
	var room testRoom
	require.NoError(t, Decode(item, &room))
	return room
}

func TestMemoryGetMissing(t *testing.T) {
	m := NewMemory()
	_, err := m.Get(context.Background(), Doc("users", "nobody"))
	assert.ErrorIs(t, err, ErrNotFound)

	err = m.Update(context.Background(), Doc("users", "nobody"), Set(String("x"), "name"))
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, m.Delete(context.Background(), Doc("users", "nobody")))
}

func TestMemoryInvalidRef(t *testing.T) {
	m := NewMemory()
	_, err := m.Get(context.Background(), Doc("users", ""))
	assert.ErrorIs(t, err, ErrInvalidRef)
	_, err = m.Query(context.Background(), Query{})
	assert.ErrorIs(t, err, ErrInvalidRef)
}

func TestMemoryCopiesDocuments(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	item := Item{"name": String("Alice")}
	require.NoError(t, m.Set(ctx, Doc("users", "u1"), item))

	item["name"] = String("Mallory")
	got, err := m.Get(ctx, Doc("users", "u1"))
	require.NoError(t, err)
	assert.Equal(t, String("Alice"), got["name"])

	got["name"] = String("Eve")
	again, err := m.Get(ctx, Doc("users", "u1"))
	require.NoError(t, err)
	assert.Equal(t, String("Alice"), again["name"])
}

func TestMemoryQueryFilters(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	putRoom(t, m, testRoom{RoomID: "r1", MemberIDs: []string{"u1", "u2"}, LastTS: 10, UnreadCounts: map[string]int64{}})
	putRoom(t, m, testRoom{RoomID: "r2", MemberIDs: []string{"u2", "u3"}, LastTS: 30, UnreadCounts: map[string]int64{}})
	putRoom(t, m, testRoom{RoomID: "r3", MemberIDs: []string{"u1", "u3"}, IsGroup: true, LastTS: 20, UnreadCounts: map[string]int64{}})

	snaps, err := m.Query(ctx, Query{
		Collection: "chatrooms",
		Filters:    []Filter{ArrayContains("memberIds", "u1")},
		OrderBy:    "lastMessageTimestamp",
		Descending: true,
	})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "r3", snaps[0].ID)
	assert.Equal(t, "r1", snaps[1].ID)

	snaps, err = m.Query(ctx, Query{
		Collection: "chatrooms",
		Filters:    []Filter{ArrayContains("memberIds", "u1"), Where("isGroup", Bool(false))},
	})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "r1", snaps[0].ID)

	snaps, err = m.Query(ctx, Query{Collection: "chatrooms", Filters: []Filter{IDIn("r2", "r3", "missing")}})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "r2", snaps[0].ID)

	snaps, err = m.Query(ctx, Query{Collection: "chatrooms", Filters: []Filter{In("roomId", "r1")}})
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	snaps, err = m.Query(ctx, Query{Collection: "chatrooms", OrderBy: "lastMessageTimestamp", Limit: 2})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "r1", snaps[0].ID)
	assert.Equal(t, "r3", snaps[1].ID)

	snaps, err = m.Query(ctx, Query{Collection: "nothing"})
	require.NoError(t, err)
	assert.NotNil(t, snaps)
	assert.Empty(t, snaps)
}

func TestMemoryUpdateMutations(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	ref := Doc("chatrooms", "r1")
	putRoom(t, m, testRoom{RoomID: "r1", MemberIDs: []string{"u1", "u2"}, UnreadCounts: map[string]int64{}})

	require.NoError(t, m.Update(ctx, ref,
		Increment(1, "unreadCounts", "u2"),
		Increment(2, "unreadCounts", "u2"),
		ArrayUnion("memberIds", "u3", "u1"),
	))
	room := getRoom(t, m, "r1")
	assert.Equal(t, int64(3), room.UnreadCounts["u2"])
	assert.ElementsMatch(t, []string{"u1", "u2", "u3"}, room.MemberIDs)

	require.NoError(t, m.Update(ctx, ref,
		Set(&types.AttributeValueMemberN{Value: "0"}, "unreadCounts", "u2"),
		ArrayRemove("memberIds", "u1", "u2", "u3"),
	))
	room = getRoom(t, m, "r1")
	assert.Equal(t, int64(0), room.UnreadCounts["u2"])
	assert.Empty(t, room.MemberIDs)

	item, err := m.Get(ctx, ref)
	require.NoError(t, err)
	_, present := item["memberIds"]
	assert.False(t, present, "an emptied set is removed")
}

func TestMemoryUpdateIsAllOrNothing(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	ref := Doc("users", "u1")
	require.NoError(t, m.Set(ctx, ref, Item{"name": String("Alice")}))

	err := m.Update(ctx, ref, Set(String("Bob"), "name"), Increment(1, "name", "nested"))
	require.Error(t, err)

	item, err := m.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, String("Alice"), item["name"])
}
