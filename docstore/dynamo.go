package docstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"chatsync_server/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// Key attributes of the single-table layout: pk holds the collection path, sk the document id
const (
	PartitionKey = "pk"
	SortKey      = "sk"

	maxBatchGet    = 100
	maxInOperands  = 100
	conditionCheck = "attribute_exists(#sk)"
)

// DynamoAPI is the subset of the DynamoDB client the store uses
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
}

// Dynamo stores every collection in one DynamoDB table keyed by (pk, sk).
// Reads are strongly consistent so that a watcher re-reading after a notice sees the write.
type Dynamo struct {
	Client DynamoAPI
	Table  string
	logger *zap.Logger
}

func NewDynamo(client DynamoAPI, table string, logger *zap.Logger) *Dynamo {
	return &Dynamo{Client: client, Table: table, logger: logger.Named("dynamo")}
}

func keyOf(ref Ref) Item {
	return Item{
		PartitionKey: &types.AttributeValueMemberS{Value: ref.Collection},
		SortKey:      &types.AttributeValueMemberS{Value: ref.ID},
	}
}

func stripKeys(item Item) Item {
	delete(item, PartitionKey)
	delete(item, SortKey)
	return item
}

// Get retrieves one document
func (d *Dynamo) Get(ctx context.Context, ref Ref) (Item, error) {
	if err := validRef(ref); err != nil {
		return nil, err
	}
	output, err := d.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &d.Table,
		Key:            keyOf(ref),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item '%s' from table '%s': %w", ref, d.Table, err)
	}
	if output.Item == nil {
		return nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	return stripKeys(output.Item), nil
}

// Set writes the whole document
func (d *Dynamo) Set(ctx context.Context, ref Ref, item Item) error {
	if err := validRef(ref); err != nil {
		return err
	}
	stored := make(Item, len(item)+2)
	for k, v := range item {
		stored[k] = v
	}
	for k, v := range keyOf(ref) {
		stored[k] = v
	}
	_, err := d.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &d.Table,
		Item:      stored,
	})
	if err != nil {
		d.logger.Error("❌ Failed to put item", zap.String("ref", ref.Path()), zap.Error(err))
		return fmt.Errorf("failed to put item '%s' in table '%s': %w", ref, d.Table, err)
	}
	return nil
}

// Update runs all mutations as one conditional UpdateItem
func (d *Dynamo) Update(ctx context.Context, ref Ref, mutations ...Mutation) error {
	if err := validRef(ref); err != nil {
		return err
	}
	expr, names, values, err := BuildUpdateExpression(mutations)
	if err != nil {
		return err
	}
	if expr == "" {
		// nothing to change; still report a missing document
		_, err := d.Get(ctx, ref)
		return err
	}
	names["#sk"] = SortKey

	input := &dynamodb.UpdateItemInput{
		TableName:                &d.Table,
		Key:                      keyOf(ref),
		UpdateExpression:         aws.String(expr),
		ConditionExpression:      aws.String(conditionCheck),
		ExpressionAttributeNames: names,
	}
	if len(values) > 0 {
		input.ExpressionAttributeValues = values
	}

	d.logger.Debug("🔄 UpdateItem", zap.String("ref", ref.Path()), zap.String("expression", expr))
	if _, err := d.Client.UpdateItem(ctx, input); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("%s: %w", ref, ErrNotFound)
		}
		d.logger.Error("❌ Failed to update item", zap.String("ref", ref.Path()), zap.Error(err))
		return fmt.Errorf("failed to update item '%s' in table '%s': %w", ref, d.Table, err)
	}
	return nil
}

// Delete removes a document
func (d *Dynamo) Delete(ctx context.Context, ref Ref) error {
	if err := validRef(ref); err != nil {
		return err
	}
	_, err := d.Client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &d.Table,
		Key:       keyOf(ref),
	})
	if err != nil {
		return fmt.Errorf("failed to delete item '%s' from table '%s': %w", ref, d.Table, err)
	}
	return nil
}

// Query reads a collection partition with the filters pushed down as a FilterExpression.
// Id-in filters are served by BatchGetItem. Ordering and the limit are applied after filtering,
// since DynamoDB's Limit counts items before the filter runs.
func (d *Dynamo) Query(ctx context.Context, q Query) ([]Snapshot, error) {
	if q.Collection == "" {
		return nil, fmt.Errorf("%w: empty collection", ErrInvalidRef)
	}
	for _, f := range q.Filters {
		if (f.Op == OpIn || f.Op == OpIDIn) && len(f.Values) == 0 {
			return []Snapshot{}, nil
		}
	}

	var items []Item
	var err error
	if ids, ok := idFilter(q.Filters); ok {
		items, err = d.batchGet(ctx, q.Collection, ids)
	} else {
		items, err = d.queryPartition(ctx, q)
	}
	if err != nil {
		return nil, err
	}

	out := make([]Snapshot, 0, len(items))
	for _, item := range items {
		id := utils.ExtractString(item, SortKey)
		item = stripKeys(item)
		if Matches(id, item, q.Filters) {
			out = append(out, Snapshot{ID: id, Item: item})
		}
	}
	SortSnapshots(out, q.OrderBy, q.Descending)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func idFilter(filters []Filter) ([]string, bool) {
	for _, f := range filters {
		if f.Op == OpIDIn {
			return f.Values, true
		}
	}
	return nil, false
}

func (d *Dynamo) queryPartition(ctx context.Context, q Query) ([]Item, error) {
	filterExpr, names, values := BuildFilterExpression(q.Filters)
	names["#pk"] = PartitionKey
	values[":pk"] = &types.AttributeValueMemberS{Value: q.Collection}

	input := &dynamodb.QueryInput{
		TableName:                 &d.Table,
		KeyConditionExpression:    aws.String("#pk = :pk"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConsistentRead:            aws.Bool(true),
	}
	if filterExpr != "" {
		input.FilterExpression = aws.String(filterExpr)
	}

	var items []Item
	for {
		output, err := d.Client.Query(ctx, input)
		if err != nil {
			d.logger.Error("❌ Failed to query partition", zap.String("collection", q.Collection), zap.Error(err))
			return nil, fmt.Errorf("failed to query '%s' in table '%s': %w", q.Collection, d.Table, err)
		}
		items = append(items, output.Items...)
		if len(output.LastEvaluatedKey) == 0 {
			return items, nil
		}
		input.ExclusiveStartKey = output.LastEvaluatedKey
	}
}

// batchGet fetches documents by id in batches of 100, retrying unprocessed keys
func (d *Dynamo) batchGet(ctx context.Context, collection string, ids []string) ([]Item, error) {
	var items []Item
	seen := make(map[string]bool, len(ids))
	for i := 0; i < len(ids); i += maxBatchGet {
		end := i + maxBatchGet
		if end > len(ids) {
			end = len(ids)
		}
		keys := make([]Item, 0, end-i)
		for _, id := range ids[i:end] {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			keys = append(keys, keyOf(Ref{Collection: collection, ID: id}))
		}
		request := map[string]types.KeysAndAttributes{
			d.Table: {Keys: keys, ConsistentRead: aws.Bool(true)},
		}
		for len(keys) > 0 && len(request) > 0 {
			output, err := d.Client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: request})
			if err != nil {
				return nil, fmt.Errorf("failed to batch get from table '%s': %w", d.Table, err)
			}
			items = append(items, output.Responses[d.Table]...)
			request = output.UnprocessedKeys
		}
	}
	return items, nil
}

// BuildFilterExpression renders filters as a DynamoDB FilterExpression. Id filters are skipped
// (they select keys), as are "in" filters over the operand limit; both are applied in memory.
func BuildFilterExpression(filters []Filter) (string, map[string]string, Item) {
	names := map[string]string{}
	values := Item{}
	var parts []string
	for i, f := range filters {
		name := "#f" + strconv.Itoa(i)
		value := ":f" + strconv.Itoa(i)
		switch f.Op {
		case OpEqual:
			names[name] = f.Field
			values[value] = f.Value
			parts = append(parts, fmt.Sprintf("%s = %s", name, value))
		case OpArrayContains:
			names[name] = f.Field
			values[value] = f.Value
			parts = append(parts, fmt.Sprintf("contains(%s, %s)", name, value))
		case OpIn:
			if len(f.Values) > maxInOperands {
				continue
			}
			names[name] = f.Field
			operands := make([]string, len(f.Values))
			for j, v := range f.Values {
				operands[j] = value + "_" + strconv.Itoa(j)
				values[operands[j]] = &types.AttributeValueMemberS{Value: v}
			}
			parts = append(parts, fmt.Sprintf("%s IN (%s)", name, strings.Join(operands, ", ")))
		}
	}
	return strings.Join(parts, " AND "), names, values
}

// BuildUpdateExpression renders mutations as SET / ADD / DELETE clauses.
// Increments start from zero when the number is absent. Removing the last member of a set drops
// the attribute, which is DynamoDB's behaviour for empty sets.
func BuildUpdateExpression(mutations []Mutation) (string, map[string]string, Item, error) {
	names := map[string]string{}
	values := Item{}
	var sets, adds, dels []string

	for i, m := range mutations {
		if len(m.Path) == 0 {
			return "", nil, nil, fmt.Errorf("mutation %d: empty field path", i)
		}
		segs := make([]string, len(m.Path))
		for j, seg := range m.Path {
			segs[j] = fmt.Sprintf("#m%d_%d", i, j)
			names[segs[j]] = seg
		}
		path := strings.Join(segs, ".")
		value := ":m" + strconv.Itoa(i)

		switch m.Kind {
		case MutSet:
			values[value] = m.Value
			sets = append(sets, fmt.Sprintf("%s = %s", path, value))
		case MutIncrement:
			values[value] = &types.AttributeValueMemberN{Value: strconv.FormatInt(m.Delta, 10)}
			values[":zero"] = &types.AttributeValueMemberN{Value: "0"}
			sets = append(sets, fmt.Sprintf("%s = if_not_exists(%s, :zero) + %s", path, path, value))
		case MutArrayUnion, MutArrayRemove:
			if len(m.Values) == 0 {
				for _, seg := range segs {
					delete(names, seg)
				}
				continue
			}
			values[value] = &types.AttributeValueMemberSS{Value: m.Values}
			if m.Kind == MutArrayUnion {
				adds = append(adds, fmt.Sprintf("%s %s", path, value))
			} else {
				dels = append(dels, fmt.Sprintf("%s %s", path, value))
			}
		default:
			return "", nil, nil, fmt.Errorf("mutation %d: unknown kind %d", i, m.Kind)
		}
	}

	var clauses []string
	if len(sets) > 0 {
		clauses = append(clauses, "SET "+strings.Join(sets, ", "))
	}
	if len(adds) > 0 {
		clauses = append(clauses, "ADD "+strings.Join(adds, ", "))
	}
	if len(dels) > 0 {
		clauses = append(clauses, "DELETE "+strings.Join(dels, ", "))
	}
	return strings.Join(clauses, " "), names, values, nil
}

// EnsureTable creates the single table when it does not exist yet (local development, DynamoDB Local)
func EnsureTable(ctx context.Context, client *dynamodb.Client, table string) error {
	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(PartitionKey), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(SortKey), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(PartitionKey), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(SortKey), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	var inUse *types.ResourceInUseException
	if err != nil && !errors.As(err, &inUse) {
		return fmt.Errorf("failed to create table '%s': %w", table, err)
	}
	return nil
}
