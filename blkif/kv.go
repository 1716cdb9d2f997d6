package blkif

import (
	"fmt"
	"strconv"
)

// Attr is one decoded key/value pair view over an attribute map. Decoders
// take a plain map[string]string (the flattened view of a KV node's
// children) rather than this type; Attr exists only as the output shape of
// the *Assoc encoders below, matching the "flat attribute maps" language of
// the spec.
type Attr struct {
	Key   string
	Value string
}

// require fetches key from m or fails with the canonical "missing <key>
// key" message. Every *FromAssoc decoder in this package routes its first
// lookup failure through here so the wording stays identical everywhere.
func require(m map[string]string, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", fmt.Errorf("missing %s key", key)
	}
	return v, nil
}

func parseInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("not an int: %s", s)
	}
	return n, nil
}

func parseInt32(s string) (int32, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an int32: %s", s)
	}
	return int32(n), nil
}

func parseInt64(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not an int64: %s", s)
	}
	return n, nil
}

// requireInt is the short-circuiting combinator used throughout
// descriptors.go: require the key, then parse it, failing on the first of
// either error exactly as the spec's "first-failure-wins" decode contract
// demands.
func requireInt(m map[string]string, key string) (int, error) {
	v, err := require(m, key)
	if err != nil {
		return 0, err
	}
	return parseInt(v)
}

func requireInt64(m map[string]string, key string) (int64, error) {
	v, err := require(m, key)
	if err != nil {
		return 0, err
	}
	return parseInt64(v)
}
