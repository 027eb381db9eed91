package graph

import (
	"bytes"
	"encoding/json"
)

// Item is anything published to the surface as part of a keyed collection
type Item interface {
	ItemID() string
	ItemData() map[string]any
	ItemStyle() map[string]any
}

// Changed reports whether current differs from previous by identity or by
// visual payload. A nil previous means nothing was published before and always
// counts as a change. Items are matched by id; data and style are compared by
// their JSON encoding, with a missing map treated as {}.
func Changed[T Item](current, previous []T) bool {
	if previous == nil {
		return true
	}
	if len(current) != len(previous) {
		return true
	}

	prevByID := make(map[string]T, len(previous))
	for _, item := range previous {
		prevByID[item.ItemID()] = item
	}
	currByID := make(map[string]T, len(current))
	for _, item := range current {
		currByID[item.ItemID()] = item
	}

	for id := range currByID {
		if _, ok := prevByID[id]; !ok {
			return true
		}
	}

	for id, curr := range currByID {
		if !sameEncoding(curr.ItemData(), prevByID[id].ItemData()) {
			return true
		}
	}
	for id, curr := range currByID {
		if !sameEncoding(curr.ItemStyle(), prevByID[id].ItemStyle()) {
			return true
		}
	}

	return false
}

// NodesChanged is Changed specialised for nodes
func NodesChanged(current, previous []Node) bool {
	return Changed(current, previous)
}

// EdgesChanged is Changed specialised for edges
func EdgesChanged(current, previous []Edge) bool {
	return Changed(current, previous)
}

// sameEncoding compares two payloads by serialized form.
// encoding/json sorts map keys, so equal maps encode identically.
// An encoding failure on either side is reported as a difference.
func sameEncoding(a, b map[string]any) bool {
	ea, err := encode(a)
	if err != nil {
		return false
	}
	eb, err := encode(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ea, eb)
}

func encode(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}
