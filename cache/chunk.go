package cache

import (
	"bytes"
	"fmt"
	"strings"
)

// chunkMarker prefixes index records that point at a chunked value.
const chunkMarker = "%CHUNK%"

// Payload tags recorded in a chunk index. They distinguish raw binary
// payloads from serialized-object payloads so readers know what the
// reassembled bytes are.
const (
	TagBinary byte = 'B'
	TagObject byte = 'O'
)

// SplitChunks cuts data into size-byte pieces, last piece short. A size
// larger than the payload yields a single chunk equal to the original.
func SplitChunks(data []byte, size int) [][]byte {
	if size <= 0 {
		return [][]byte{data}
	}
	var out [][]byte
	for start := 0; start < len(data); start += size {
		end := start + size
		if end > len(data) {
			end = len(data)
		}
		out = append(out, data[start:end])
	}
	if len(out) == 0 {
		out = append(out, []byte{})
	}
	return out
}

// JoinChunks concatenates chunks in order, restoring the original payload.
func JoinChunks(chunks [][]byte) []byte {
	size := 0
	for _, c := range chunks {
		size += len(c)
	}
	out := make([]byte, 0, size)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// chunkKey derives the storage key of the i-th chunk of a value.
func chunkKey(i int, key string) string {
	return fmt.Sprintf("chunk:%d:%s", i, key)
}

// encodeChunkIndex builds the index record stored under the original key:
// the marker, the payload tag, and the ordered chunk key list.
func encodeChunkIndex(tag byte, keys []string) []byte {
	var b strings.Builder
	b.WriteString(chunkMarker)
	b.WriteByte(tag)
	b.WriteByte('%')
	b.WriteString(strings.Join(keys, ","))
	return []byte(b.String())
}

// parseChunkIndex recognizes an index record and returns its tag and
// ordered chunk keys. ok is false for ordinary values.
func parseChunkIndex(val []byte) (tag byte, keys []string, ok bool) {
	if !bytes.HasPrefix(val, []byte(chunkMarker)) {
		return 0, nil, false
	}
	rest := val[len(chunkMarker):]
	if len(rest) < 2 || rest[1] != '%' {
		return 0, nil, false
	}
	tag = rest[0]
	if tag != TagBinary && tag != TagObject {
		return 0, nil, false
	}
	list := string(rest[2:])
	if list == "" {
		return tag, nil, true
	}
	return tag, strings.Split(list, ","), true
}
