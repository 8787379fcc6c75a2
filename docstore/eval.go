package docstore

import (
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strconv"

	"chatsync_server/utils"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Matches reports whether a document satisfies every filter
func Matches(id string, item Item, filters []Filter) bool {
	for _, f := range filters {
		if !matchOne(id, item, f) {
			return false
		}
	}
	return true
}

func matchOne(id string, item Item, f Filter) bool {
	switch f.Op {
	case OpEqual:
		attr, ok := item[f.Field]
		return ok && equalAttr(attr, f.Value)
	case OpArrayContains:
		s, ok := f.Value.(*types.AttributeValueMemberS)
		return ok && slices.Contains(utils.ExtractStrings(item, f.Field), s.Value)
	case OpIn:
		v := utils.ExtractString(item, f.Field)
		return v != "" && slices.Contains(f.Values, v)
	case OpIDIn:
		return slices.Contains(f.Values, id)
	}
	return false
}

func equalAttr(a, b types.AttributeValue) bool {
	if an, ok := a.(*types.AttributeValueMemberN); ok {
		bn, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return false
		}
		x, err1 := strconv.ParseFloat(an.Value, 64)
		y, err2 := strconv.ParseFloat(bn.Value, 64)
		return err1 == nil && err2 == nil && x == y
	}
	return reflect.DeepEqual(a, b)
}

// SortSnapshots orders snapshots by the numeric field orderBy. Documents lacking the field sort
// before all others; ties break on id.
func SortSnapshots(snaps []Snapshot, orderBy string, descending bool) {
	if orderBy == "" {
		sort.SliceStable(snaps, func(i, j int) bool { return snaps[i].ID < snaps[j].ID })
		return
	}
	less := func(a, b Snapshot) bool {
		av, aok := utils.ExtractNumber(a.Item, orderBy)
		bv, bok := utils.ExtractNumber(b.Item, orderBy)
		switch {
		case aok != bok:
			return !aok
		case av != bv:
			return av < bv
		}
		return a.ID < b.ID
	}
	sort.SliceStable(snaps, func(i, j int) bool {
		if descending {
			return less(snaps[j], snaps[i])
		}
		return less(snaps[i], snaps[j])
	})
}

// ApplyMutations applies mutations in order to item in place
func ApplyMutations(item Item, mutations []Mutation) error {
	for _, m := range mutations {
		if err := applyMutation(item, m); err != nil {
			return fmt.Errorf("mutation on %q: %w", m.Path.String(), err)
		}
	}
	return nil
}

func applyMutation(item Item, m Mutation) error {
	if len(m.Path) == 0 {
		return fmt.Errorf("empty field path")
	}
	parent := item
	for _, seg := range m.Path[:len(m.Path)-1] {
		switch child := parent[seg].(type) {
		case *types.AttributeValueMemberM:
			if child.Value == nil {
				child.Value = Item{}
			}
			parent = child.Value
		case nil, *types.AttributeValueMemberNULL:
			next := &types.AttributeValueMemberM{Value: Item{}}
			parent[seg] = next
			parent = next.Value
		default:
			return fmt.Errorf("field %q is not a map", seg)
		}
	}
	last := m.Path[len(m.Path)-1]

	switch m.Kind {
	case MutSet:
		parent[last] = CloneAttr(m.Value)
	case MutIncrement:
		current := int64(0)
		if n, ok := parent[last].(*types.AttributeValueMemberN); ok {
			v, err := strconv.ParseInt(n.Value, 10, 64)
			if err != nil {
				return fmt.Errorf("field %q is not an integer: %w", last, err)
			}
			current = v
		}
		parent[last] = &types.AttributeValueMemberN{Value: strconv.FormatInt(current+m.Delta, 10)}
	case MutArrayUnion:
		values := utils.StringsOf(parent[last])
		for _, v := range m.Values {
			if !slices.Contains(values, v) {
				values = append(values, v)
			}
		}
		if len(values) > 0 {
			parent[last] = &types.AttributeValueMemberSS{Value: values}
		}
	case MutArrayRemove:
		attr, ok := parent[last]
		if !ok {
			return nil
		}
		values := slices.DeleteFunc(utils.StringsOf(attr), func(v string) bool {
			return slices.Contains(m.Values, v)
		})
		if len(values) == 0 {
			delete(parent, last)
		} else {
			parent[last] = &types.AttributeValueMemberSS{Value: values}
		}
	default:
		return fmt.Errorf("unknown mutation kind %d", m.Kind)
	}
	return nil
}

// CloneItem deep-copies a document
func CloneItem(item Item) Item {
	if item == nil {
		return nil
	}
	out := make(Item, len(item))
	for k, v := range item {
		out[k] = CloneAttr(v)
	}
	return out
}

// CloneAttr deep-copies one attribute value
func CloneAttr(attr types.AttributeValue) types.AttributeValue {
	switch v := attr.(type) {
	case *types.AttributeValueMemberS:
		return &types.AttributeValueMemberS{Value: v.Value}
	case *types.AttributeValueMemberN:
		return &types.AttributeValueMemberN{Value: v.Value}
	case *types.AttributeValueMemberBOOL:
		return &types.AttributeValueMemberBOOL{Value: v.Value}
	case *types.AttributeValueMemberNULL:
		return &types.AttributeValueMemberNULL{Value: v.Value}
	case *types.AttributeValueMemberB:
		return &types.AttributeValueMemberB{Value: slices.Clone(v.Value)}
	case *types.AttributeValueMemberSS:
		return &types.AttributeValueMemberSS{Value: slices.Clone(v.Value)}
	case *types.AttributeValueMemberNS:
		return &types.AttributeValueMemberNS{Value: slices.Clone(v.Value)}
	case *types.AttributeValueMemberBS:
		out := make([][]byte, len(v.Value))
		for i, b := range v.Value {
			out[i] = slices.Clone(b)
		}
		return &types.AttributeValueMemberBS{Value: out}
	case *types.AttributeValueMemberL:
		out := make([]types.AttributeValue, len(v.Value))
		for i, el := range v.Value {
			out[i] = CloneAttr(el)
		}
		return &types.AttributeValueMemberL{Value: out}
	case *types.AttributeValueMemberM:
		return &types.AttributeValueMemberM{Value: CloneItem(v.Value)}
	}
	return attr
}
