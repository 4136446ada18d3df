package storage

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// KeySeparator delimits the namespace, kind, and id segments of an encoded key.
const KeySeparator = "|"

// Key identifies one entity. All fields are plain strings so keys are
// comparable and usable as map keys.
type Key struct {
	Namespace string `msgpack:"namespace"`
	Kind      string `msgpack:"kind"`
	ID        string `msgpack:"id"`
}

// NewKey builds a key in the default namespace.
func NewKey(kind, id string) Key {
	return Key{Kind: kind, ID: id}
}

// Encode renders the key as a single cache-safe string.
func (k Key) Encode() string {
	return k.Namespace + KeySeparator + k.Kind + KeySeparator + k.ID
}

// IsZero reports whether the key carries no identity at all.
func (k Key) IsZero() bool {
	return k.Kind == "" && k.ID == "" && k.Namespace == ""
}

// Incomplete reports whether the backend still needs to assign an id.
func (k Key) Incomplete() bool {
	return k.ID == ""
}

// DecodeKey parses a string produced by Encode.
func DecodeKey(s string) (Key, error) {
	parts := strings.SplitN(s, KeySeparator, 3)
	if len(parts) != 3 {
		return Key{}, errors.Errorf("storage: malformed key %q", s)
	}
	return Key{Namespace: parts[0], Kind: parts[1], ID: parts[2]}, nil
}

// Entity is a stored record: a key plus an open property bag.
type Entity struct {
	Key   Key            `msgpack:"key"`
	Props map[string]any `msgpack:"props"`
}

// Clone returns a deep copy; the cache must never hand out aliased maps.
func (e Entity) Clone() Entity {
	out := Entity{Key: e.Key}
	if e.Props != nil {
		out.Props = make(map[string]any, len(e.Props))
		for k, v := range e.Props {
			out.Props[k] = v
		}
	}
	return out
}

// MarshalEntity serializes an entity for cache storage.
func MarshalEntity(e Entity) ([]byte, error) {
	data, err := msgpack.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, "storage: marshal entity")
	}
	return data, nil
}

// UnmarshalEntity decodes an entity previously produced by MarshalEntity.
func UnmarshalEntity(data []byte) (Entity, error) {
	var e Entity
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return Entity{}, errors.Wrap(err, "storage: unmarshal entity")
	}
	return e, nil
}

// Tx names a backend transaction. A zero handle means "no transaction".
type Tx struct {
	Handle uint64 `msgpack:"handle"`
}

// Active reports whether the value names a real transaction.
func (t Tx) Active() bool {
	return t.Handle != 0
}
