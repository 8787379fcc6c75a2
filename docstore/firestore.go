package docstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore is a LiveStore backed by Cloud Firestore. Subscriptions use native snapshot listeners.
type Firestore struct {
	client *firestore.Client
	logger *zap.Logger
}

func NewFirestore(client *firestore.Client, logger *zap.Logger) *Firestore {
	return &Firestore{client: client, logger: logger.Named("firestore")}
}

func (f *Firestore) doc(ref Ref) (*firestore.DocumentRef, error) {
	if err := validRef(ref); err != nil {
		return nil, err
	}
	d := f.client.Doc(ref.Path())
	if d == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRef, ref.Path())
	}
	return d, nil
}

func (f *Firestore) Get(ctx context.Context, ref Ref) (Item, error) {
	d, err := f.doc(ref)
	if err != nil {
		return nil, err
	}
	snap, err := d.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document '%s': %w", ref, err)
	}
	return fromFirestoreMap(snap.Data())
}

func (f *Firestore) Set(ctx context.Context, ref Ref, item Item) error {
	d, err := f.doc(ref)
	if err != nil {
		return err
	}
	if _, err := d.Set(ctx, toFirestoreMap(item)); err != nil {
		return fmt.Errorf("failed to set document '%s': %w", ref, err)
	}
	return nil
}

func (f *Firestore) Update(ctx context.Context, ref Ref, mutations ...Mutation) error {
	d, err := f.doc(ref)
	if err != nil {
		return err
	}
	updates := make([]firestore.Update, 0, len(mutations))
	for _, m := range mutations {
		u := firestore.Update{FieldPath: firestore.FieldPath(m.Path)}
		switch m.Kind {
		case MutSet:
			u.Value = toFirestore(m.Value)
		case MutIncrement:
			u.Value = firestore.Increment(m.Delta)
		case MutArrayUnion:
			u.Value = firestore.ArrayUnion(stringsToAny(m.Values)...)
		case MutArrayRemove:
			u.Value = firestore.ArrayRemove(stringsToAny(m.Values)...)
		default:
			return fmt.Errorf("unknown mutation kind %d", m.Kind)
		}
		updates = append(updates, u)
	}
	if len(updates) == 0 {
		_, err := f.Get(ctx, ref)
		return err
	}
	_, err = d.Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update document '%s': %w", ref, err)
	}
	return nil
}

func (f *Firestore) Delete(ctx context.Context, ref Ref) error {
	d, err := f.doc(ref)
	if err != nil {
		return err
	}
	if _, err := d.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete document '%s': %w", ref, err)
	}
	return nil
}

// maxFirestoreIn is the most operands Firestore accepts in one "in" clause
const maxFirestoreIn = 30

// serverSide reports whether flt can be expressed as a Firestore clause
func serverSide(flt Filter) bool {
	switch flt.Op {
	case OpIn, OpIDIn:
		return len(flt.Values) <= maxFirestoreIn
	}
	return true
}

// build translates q; empty reports a query that cannot match anything and residual reports
// filters left for refine to evaluate locally
func (f *Firestore) build(q Query) (query firestore.Query, empty, residual bool, err error) {
	coll := f.client.Collection(q.Collection)
	if coll == nil {
		return firestore.Query{}, false, false, fmt.Errorf("%w: collection %q", ErrInvalidRef, q.Collection)
	}
	query = coll.Query
	for _, flt := range q.Filters {
		if (flt.Op == OpIn || flt.Op == OpIDIn) && len(flt.Values) == 0 {
			return query, true, false, nil
		}
		if !serverSide(flt) {
			residual = true
			continue
		}
		switch flt.Op {
		case OpEqual:
			query = query.Where(flt.Field, "==", toFirestore(flt.Value))
		case OpArrayContains:
			query = query.Where(flt.Field, "array-contains", toFirestore(flt.Value))
		case OpIn:
			query = query.Where(flt.Field, "in", flt.Values)
		case OpIDIn:
			refs := make([]*firestore.DocumentRef, len(flt.Values))
			for i, id := range flt.Values {
				refs[i] = coll.Doc(id)
			}
			query = query.Where(firestore.DocumentID, "in", refs)
		}
	}
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Descending {
			dir = firestore.Desc
		}
		query = query.OrderBy(q.OrderBy, dir)
	}
	if q.Limit > 0 && !residual {
		query = query.Limit(q.Limit)
	}
	return query, false, residual, nil
}

// refine applies the filters and limit build could not push to the server
func refine(snaps []Snapshot, q Query, residual bool) []Snapshot {
	if !residual {
		return snaps
	}
	out := snaps[:0]
	for _, s := range snaps {
		if Matches(s.ID, s.Item, q.Filters) {
			out = append(out, s)
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func (f *Firestore) Query(ctx context.Context, q Query) ([]Snapshot, error) {
	query, empty, residual, err := f.build(q)
	if err != nil || empty {
		return []Snapshot{}, err
	}
	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query '%s': %w", q.Collection, err)
	}
	snaps, err := snapshotsOf(docs)
	if err != nil {
		return nil, err
	}
	return refine(snaps, q, residual), nil
}

func snapshotsOf(docs []*firestore.DocumentSnapshot) ([]Snapshot, error) {
	out := make([]Snapshot, 0, len(docs))
	for _, d := range docs {
		item, err := fromFirestoreMap(d.Data())
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", d.Ref.ID, err)
		}
		out = append(out, Snapshot{ID: d.Ref.ID, Item: item})
	}
	return out, nil
}

// listenerEnded reports whether err only means the listener was stopped
func listenerEnded(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled
}

func (f *Firestore) WatchQuery(ctx context.Context, q Query) *Subscription[[]Snapshot] {
	return NewSubscription(ctx, func(ctx context.Context, emit func([]Snapshot) bool) error {
		query, empty, residual, err := f.build(q)
		if err != nil {
			return err
		}
		if empty {
			emit([]Snapshot{})
			<-ctx.Done()
			return nil
		}
		it := query.Snapshots(ctx)
		defer it.Stop()
		for {
			qs, err := it.Next()
			if err != nil {
				if listenerEnded(ctx, err) {
					return nil
				}
				f.logger.Warn("⚠️ Query listener failed", zap.String("collection", q.Collection), zap.Error(err))
				return err
			}
			docs, err := qs.Documents.GetAll()
			if err != nil {
				return err
			}
			snaps, err := snapshotsOf(docs)
			if err != nil {
				return err
			}
			if !emit(refine(snaps, q, residual)) {
				return nil
			}
		}
	})
}

func (f *Firestore) WatchDocument(ctx context.Context, ref Ref) *Subscription[*Snapshot] {
	return NewSubscription(ctx, func(ctx context.Context, emit func(*Snapshot) bool) error {
		d, err := f.doc(ref)
		if err != nil {
			return err
		}
		it := d.Snapshots(ctx)
		defer it.Stop()
		for {
			ds, err := it.Next()
			if err != nil {
				if listenerEnded(ctx, err) {
					return nil
				}
				f.logger.Warn("⚠️ Document listener failed", zap.String("ref", ref.Path()), zap.Error(err))
				return err
			}
			var snap *Snapshot
			if ds.Exists() {
				item, err := fromFirestoreMap(ds.Data())
				if err != nil {
					return err
				}
				snap = &Snapshot{ID: ref.ID, Item: item}
			}
			if !emit(snap) {
				return nil
			}
		}
	})
}

func stringsToAny(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func toFirestoreMap(item Item) map[string]interface{} {
	out := make(map[string]interface{}, len(item))
	for k, v := range item {
		out[k] = toFirestore(v)
	}
	return out
}

// toFirestore maps an attribute onto Firestore's value model. Sets become arrays; integral numbers
// stay integers so that counters keep working with Increment.
func toFirestore(attr types.AttributeValue) interface{} {
	switch v := attr.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return numberValue(v.Value)
	case *types.AttributeValueMemberBOOL:
		return v.Value
	case *types.AttributeValueMemberB:
		return v.Value
	case *types.AttributeValueMemberSS:
		return stringsToAny(v.Value)
	case *types.AttributeValueMemberNS:
		out := make([]interface{}, len(v.Value))
		for i, n := range v.Value {
			out[i] = numberValue(n)
		}
		return out
	case *types.AttributeValueMemberBS:
		out := make([]interface{}, len(v.Value))
		for i, b := range v.Value {
			out[i] = b
		}
		return out
	case *types.AttributeValueMemberL:
		out := make([]interface{}, len(v.Value))
		for i, el := range v.Value {
			out[i] = toFirestore(el)
		}
		return out
	case *types.AttributeValueMemberM:
		return toFirestoreMap(v.Value)
	}
	return nil
}

func numberValue(s string) interface{} {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func fromFirestoreMap(data map[string]interface{}) (Item, error) {
	out := make(Item, len(data))
	for k, v := range data {
		attr, err := fromFirestore(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = attr
	}
	return out, nil
}

func fromFirestore(v interface{}) (types.AttributeValue, error) {
	switch x := v.(type) {
	case nil:
		return &types.AttributeValueMemberNULL{Value: true}, nil
	case string:
		return &types.AttributeValueMemberS{Value: x}, nil
	case bool:
		return &types.AttributeValueMemberBOOL{Value: x}, nil
	case int64:
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(x, 10)}, nil
	case float64:
		return &types.AttributeValueMemberN{Value: strconv.FormatFloat(x, 'f', -1, 64)}, nil
	case []byte:
		return &types.AttributeValueMemberB{Value: x}, nil
	case time.Time:
		return &types.AttributeValueMemberS{Value: x.Format(time.RFC3339Nano)}, nil
	case *firestore.DocumentRef:
		return &types.AttributeValueMemberS{Value: x.Path}, nil
	case []interface{}:
		out := make([]types.AttributeValue, len(x))
		for i, el := range x {
			attr, err := fromFirestore(el)
			if err != nil {
				return nil, err
			}
			out[i] = attr
		}
		return &types.AttributeValueMemberL{Value: out}, nil
	case map[string]interface{}:
		m, err := fromFirestoreMap(x)
		if err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	}
	return nil, fmt.Errorf("unsupported firestore value %T", v)
}
