package docstore

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
)

// Encode marshals a struct tagged with `dynamodbav` into a document
func Encode(v interface{}) (Item, error) {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return item, nil
}

// Decode unmarshals a document into out
func Decode(item Item, out interface{}) error {
	if err := attributevalue.UnmarshalMap(item, out); err != nil {
		return fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return nil
}

// DecodeAll unmarshals query results in order
func DecodeAll[T any](snaps []Snapshot) ([]T, error) {
	out := make([]T, 0, len(snaps))
	for _, s := range snaps {
		var v T
		if err := Decode(s.Item, &v); err != nil {
			return nil, fmt.Errorf("document %s: %w", s.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// DecodeOne unmarshals an optional document; nil stays nil
func DecodeOne[T any](snap *Snapshot) (*T, error) {
	if snap == nil {
		return nil, nil
	}
	var v T
	if err := Decode(snap.Item, &v); err != nil {
		return nil, fmt.Errorf("document %s: %w", snap.ID, err)
	}
	return &v, nil
}
