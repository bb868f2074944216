package query

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Key identifies one cache slot, e.g. Key{"classes"} or
// Key{"materials", classID}. Keys with equal elements address the same slot;
// numeric elements compare by value, so int and int64 ids are interchangeable.
type Key []any

// K builds a Key.
func K(parts ...any) Key { return Key(parts) }

// String returns the canonical form used to address the slot.
func (k Key) String() string {
	parts := make([]string, len(k))
	for i, p := range k {
		parts[i] = element(p)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// HasPrefix reports whether k starts with every element of prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if element(k[i]) != element(prefix[i]) {
			return false
		}
	}
	return true
}

func element(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	return string(data)
}
