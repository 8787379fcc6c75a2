// Package docstore is the document-database layer of the chat model: collections of schemaless
// documents addressed by slash-separated paths, point reads and writes, field mutations, filtered
// queries and live subscriptions.
//
// Documents travel as DynamoDB attribute maps whatever the backend, so domain types are encoded once
// with attributevalue (see Encode and Decode).
package docstore

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrNotFound is returned when a referenced document does not exist
var ErrNotFound = errors.New("document not found")

// Item is the content of one document
type Item = map[string]types.AttributeValue

// Ref addresses one document: Collection is a collection path such as "chatrooms" or
// "chatrooms/{roomId}/chats".
type Ref struct {
	Collection string
	ID         string
}

// Doc builds a Ref
func Doc(collection, id string) Ref {
	return Ref{Collection: collection, ID: id}
}

// Path returns "collection/id"
func (r Ref) Path() string {
	return r.Collection + "/" + r.ID
}

func (r Ref) String() string {
	return r.Path()
}

// Snapshot is a document as read at one point in time
type Snapshot struct {
	ID   string
	Item Item
}

// Op is a query predicate operator
type Op int

const (
	// OpEqual matches documents whose field equals Value.
	OpEqual Op = iota
	// OpArrayContains matches documents whose set or list field contains Value.
	OpArrayContains
	// OpIn matches documents whose string field is one of Values.
	OpIn
	// OpIDIn matches documents whose id is one of Values.
	OpIDIn
)

func (o Op) String() string {
	switch o {
	case OpEqual:
		return "=="
	case OpArrayContains:
		return "array-contains"
	case OpIn:
		return "in"
	case OpIDIn:
		return "id-in"
	}
	return "unknown"
}

// Filter is one predicate of a query. Filters of a query are AND-ed.
type Filter struct {
	Field  string
	Op     Op
	Value  types.AttributeValue
	Values []string
}

// Where builds an equality filter
func Where(field string, value types.AttributeValue) Filter {
	return Filter{Field: field, Op: OpEqual, Value: value}
}

// ArrayContains builds an array-contains filter
func ArrayContains(field, value string) Filter {
	return Filter{Field: field, Op: OpArrayContains, Value: String(value)}
}

// In builds an "in" filter on a string field
func In(field string, values ...string) Filter {
	return Filter{Field: field, Op: OpIn, Values: values}
}

// IDIn builds a document-id "in" filter
func IDIn(ids ...string) Filter {
	return Filter{Op: OpIDIn, Values: ids}
}

// Query selects documents of one collection
type Query struct {
	Collection string
	Filters    []Filter
	// OrderBy names a numeric field; documents lacking it sort first. Ties break on id.
	OrderBy    string
	Descending bool
	// Limit caps the result size when positive.
	Limit int
}

// MutationKind enumerates field mutations
type MutationKind int

const (
	MutSet MutationKind = iota
	MutIncrement
	MutArrayUnion
	MutArrayRemove
)

// FieldPath addresses a possibly nested field, e.g. {"unreadCounts", uid}
type FieldPath []string

func (p FieldPath) String() string {
	return strings.Join(p, ".")
}

// Mutation changes one field of an existing document
type Mutation struct {
	Path   FieldPath
	Kind   MutationKind
	Value  types.AttributeValue
	Delta  int64
	Values []string
}

// Set replaces the value at path
func Set(value types.AttributeValue, path ...string) Mutation {
	return Mutation{Path: path, Kind: MutSet, Value: value}
}

// Increment adds delta to the number at path; a missing number counts as zero
func Increment(delta int64, path ...string) Mutation {
	return Mutation{Path: path, Kind: MutIncrement, Delta: delta}
}

// ArrayUnion adds values to the string set at field
func ArrayUnion(field string, values ...string) Mutation {
	return Mutation{Path: FieldPath{field}, Kind: MutArrayUnion, Values: values}
}

// ArrayRemove removes values from the string set at field
func ArrayRemove(field string, values ...string) Mutation {
	return Mutation{Path: FieldPath{field}, Kind: MutArrayRemove, Values: values}
}

// Store is the request/response half of a document database.
type Store interface {
	// Get returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, ref Ref) (Item, error)
	// Set creates or fully replaces a document.
	Set(ctx context.Context, ref Ref, item Item) error
	// Update applies mutations to an existing document, ErrNotFound otherwise.
	Update(ctx context.Context, ref Ref, mutations ...Mutation) error
	// Delete removes a document; deleting a missing document is not an error.
	Delete(ctx context.Context, ref Ref) error
	Query(ctx context.Context, q Query) ([]Snapshot, error)
}

// Watcher opens live subscriptions. Every emission is the full current result.
type Watcher interface {
	WatchQuery(ctx context.Context, q Query) *Subscription[[]Snapshot]
	// WatchDocument emits nil while the document does not exist.
	WatchDocument(ctx context.Context, ref Ref) *Subscription[*Snapshot]
}

// LiveStore is a Store with live subscriptions
type LiveStore interface {
	Store
	Watcher
}

// String builds a string attribute
func String(s string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: s}
}

// Bool builds a boolean attribute
func Bool(b bool) types.AttributeValue {
	return &types.AttributeValueMemberBOOL{Value: b}
}

// Number builds an integer attribute
func Number(n int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}
