package cache

import (
	"time"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Item wraps a cached payload with its creation time. The timestamp is set
// at construction and never mutated; the query cache compares it against
// per-kind reset watermarks to decide validity.
type Item struct {
	Data      []byte    `msgpack:"data"`
	Timestamp time.Time `msgpack:"timestamp"`
}

// NewItem stamps the payload with the given creation time.
func NewItem(data []byte, now time.Time) *Item {
	return &Item{Data: data, Timestamp: now}
}

// Encode serializes the item for cache storage.
func (i *Item) Encode() ([]byte, error) {
	data, err := msgpack.Marshal(i)
	if err != nil {
		return nil, errors.Wrap(err, "cache: encode item")
	}
	return data, nil
}

// DecodeItem decodes an item previously produced by Encode.
func DecodeItem(data []byte) (*Item, error) {
	var i Item
	if err := msgpack.Unmarshal(data, &i); err != nil {
		return nil, errors.Wrap(err, "cache: decode item")
	}
	return &i, nil
}
