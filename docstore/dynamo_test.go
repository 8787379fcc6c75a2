package docstore

import (
	"context"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeDynamo records requests and replays canned responses
type fakeDynamo struct {
	DynamoAPI
	updates  []*dynamodb.UpdateItemInput
	queries  []*dynamodb.QueryInput
	batches  []*dynamodb.BatchGetItemInput
	puts     []*dynamodb.PutItemInput
	pages    []*dynamodb.QueryOutput
	batchOut []*dynamodb.BatchGetItemOutput
	getOut   *dynamodb.GetItemOutput
	err      error
}

func (f *fakeDynamo) GetItem(_ context.Context, _ *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.getOut == nil {
		return &dynamodb.GetItemOutput{}, nil
	}
	return f.getOut, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.puts = append(f.puts, in)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updates = append(f.updates, in)
	return &dynamodb.UpdateItemOutput{}, f.err
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	copied := *in
	f.queries = append(f.queries, &copied)
	out := f.pages[0]
	f.pages = f.pages[1:]
	return out, nil
}

func (f *fakeDynamo) BatchGetItem(_ context.Context, in *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	f.batches = append(f.batches, in)
	out := f.batchOut[0]
	f.batchOut = f.batchOut[1:]
	return out, nil
}

func stored(collection, id string, item Item) Item {
	out := CloneItem(item)
	out[PartitionKey] = String(collection)
	out[SortKey] = String(id)
	return out
}

func TestBuildUpdateExpression(t *testing.T) {
	expr, names, values, err := BuildUpdateExpression([]Mutation{
		Set(String("Alice"), "name"),
		Increment(1, "unreadCounts", "u2"),
		ArrayUnion("memberIds", "u3"),
		ArrayRemove("adminIds", "u1"),
		ArrayUnion("memberIds"),
	})
	require.NoError(t, err)
	assert.Equal(t,
		"SET #m0_0 = :m0, #m1_0.#m1_1 = if_not_exists(#m1_0.#m1_1, :zero) + :m1 ADD #m2_0 :m2 DELETE #m3_0 :m3",
		expr)
	assert.Equal(t, map[string]string{
		"#m0_0": "name",
		"#m1_0": "unreadCounts", "#m1_1": "u2",
		"#m2_0": "memberIds",
		"#m3_0": "adminIds",
	}, names)
	assert.Equal(t, &types.AttributeValueMemberN{Value: "1"}, values[":m1"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "0"}, values[":zero"])
	assert.Equal(t, &types.AttributeValueMemberSS{Value: []string{"u3"}}, values[":m2"])
	assert.NotContains(t, values, ":m4")

	_, _, _, err = BuildUpdateExpression([]Mutation{{Kind: MutSet}})
	assert.Error(t, err)
}

func TestBuildFilterExpression(t *testing.T) {
	expr, names, values := BuildFilterExpression([]Filter{
		ArrayContains("memberIds", "u1"),
		Where("isGroup", Bool(false)),
		In("email", "a@x.com", "b@x.com"),
		IDIn("ignored"),
	})
	assert.Equal(t, "contains(#f0, :f0) AND #f1 = :f1 AND #f2 IN (:f2_0, :f2_1)", expr)
	assert.Equal(t, map[string]string{"#f0": "memberIds", "#f1": "isGroup", "#f2": "email"}, names)
	assert.Equal(t, String("b@x.com"), values[":f2_1"])
}

func TestDynamoUpdateMapsConditionFailure(t *testing.T) {
	fake := &fakeDynamo{err: &types.ConditionalCheckFailedException{Message: aws.String("nope")}}
	d := NewDynamo(fake, "chat", zap.NewNop())

	err := d.Update(context.Background(), Doc("chatrooms", "r1"), Increment(1, "unreadCounts", "u2"))
	assert.ErrorIs(t, err, ErrNotFound)
	require.Len(t, fake.updates, 1)
	in := fake.updates[0]
	assert.Equal(t, "attribute_exists(#sk)", aws.ToString(in.ConditionExpression))
	assert.Equal(t, SortKey, in.ExpressionAttributeNames["#sk"])
	assert.Equal(t, String("chatrooms"), in.Key[PartitionKey])
	assert.Equal(t, String("r1"), in.Key[SortKey])
}

func TestDynamoSetAddsKeys(t *testing.T) {
	fake := &fakeDynamo{}
	d := NewDynamo(fake, "chat", zap.NewNop())
	item := Item{"name": String("Alice")}
	require.NoError(t, d.Set(context.Background(), Doc("users", "u1"), item))

	require.Len(t, fake.puts, 1)
	assert.Equal(t, String("users"), fake.puts[0].Item[PartitionKey])
	assert.Equal(t, String("u1"), fake.puts[0].Item[SortKey])
	assert.NotContains(t, item, PartitionKey, "caller's item is left untouched")
}

func TestDynamoGetMissing(t *testing.T) {
	d := NewDynamo(&fakeDynamo{}, "chat", zap.NewNop())
	_, err := d.Get(context.Background(), Doc("users", "u1"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDynamoQueryPagesFiltersAndSorts(t *testing.T) {
	fake := &fakeDynamo{pages: []*dynamodb.QueryOutput{
		{
			Items:            []Item{stored("chatrooms", "r1", Item{"lastMessageTimestamp": Number(5), "memberIds": &types.AttributeValueMemberSS{Value: []string{"u1"}}})},
			LastEvaluatedKey: Item{PartitionKey: String("chatrooms"), SortKey: String("r1")},
		},
		{
			Items: []Item{stored("chatrooms", "r2", Item{"lastMessageTimestamp": Number(9), "memberIds": &types.AttributeValueMemberSS{Value: []string{"u1", "u2"}}})},
		},
	}}
	d := NewDynamo(fake, "chat", zap.NewNop())

	snaps, err := d.Query(context.Background(), Query{
		Collection: "chatrooms",
		Filters:    []Filter{ArrayContains("memberIds", "u1")},
		OrderBy:    "lastMessageTimestamp",
		Descending: true,
	})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "r2", snaps[0].ID)
	assert.NotContains(t, snaps[0].Item, PartitionKey)

	require.Len(t, fake.queries, 2)
	assert.Equal(t, "#pk = :pk", aws.ToString(fake.queries[0].KeyConditionExpression))
	assert.Equal(t, "contains(#f0, :f0)", aws.ToString(fake.queries[0].FilterExpression))
	assert.True(t, aws.ToBool(fake.queries[0].ConsistentRead))
	assert.NotNil(t, fake.queries[1].ExclusiveStartKey)
}

func TestDynamoQueryByIDUsesBatchGet(t *testing.T) {
	fake := &fakeDynamo{batchOut: []*dynamodb.BatchGetItemOutput{
		{
			Responses: map[string][]Item{"chat": {stored("users", "u1", Item{"name": String("A")})}},
			UnprocessedKeys: map[string]types.KeysAndAttributes{
				"chat": {Keys: []Item{keyOf(Doc("users", "u2"))}},
			},
		},
		{
			Responses: map[string][]Item{"chat": {stored("users", "u2", Item{"name": String("B")})}},
		},
	}}
	d := NewDynamo(fake, "chat", zap.NewNop())

	snaps, err := d.Query(context.Background(), Query{Collection: "users", Filters: []Filter{IDIn("u2", "u1", "u1")}})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "u1", snaps[0].ID)
	assert.Equal(t, "u2", snaps[1].ID)
	require.Len(t, fake.batches, 2)
	assert.Len(t, fake.batches[0].RequestItems["chat"].Keys, 2, "duplicate ids are requested once")
	assert.Empty(t, fake.queries)

	snaps, err = d.Query(context.Background(), Query{Collection: "users", Filters: []Filter{IDIn()}})
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

// TestDynamoLocal runs the store against DynamoDB Local when DYNAMODB_ENDPOINT is set
func TestDynamoLocal(t *testing.T) {
	endpoint := os.Getenv("DYNAMODB_ENDPOINT")
	if endpoint == "" {
		t.Skip("DYNAMODB_ENDPOINT not set")
	}
	ctx := context.Background()
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion("us-east-1"))
	require.NoError(t, err)
	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
	table := "chatsync-test"
	require.NoError(t, EnsureTable(ctx, client, table))

	d := NewDynamo(client, table, zap.NewNop())
	id := uuid.NewString()
	putRoom(t, d, testRoom{RoomID: id, MemberIDs: []string{"u1", "u2"}, UnreadCounts: map[string]int64{}})

	ref := Doc("chatrooms", id)
	require.NoError(t, d.Update(ctx, ref, Increment(2, "unreadCounts", "u2"), ArrayUnion("memberIds", "u3")))
	got := getRoom(t, d, id)
	assert.Equal(t, int64(2), got.UnreadCounts["u2"])
	assert.ElementsMatch(t, []string{"u1", "u2", "u3"}, got.MemberIDs)

	snaps, err := d.Query(ctx, Query{Collection: "chatrooms", Filters: []Filter{ArrayContains("memberIds", "u3")}})
	require.NoError(t, err)
	assert.NotEmpty(t, snaps)

	assert.ErrorIs(t, d.Update(ctx, Doc("chatrooms", "missing-"+uuid.NewString()), Increment(1, "n")), ErrNotFound)
	require.NoError(t, d.Delete(ctx, ref))
	_, err = d.Get(ctx, ref)
	assert.ErrorIs(t, err, ErrNotFound)
}
