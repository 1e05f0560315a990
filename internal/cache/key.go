package cache

import (
	"fmt"
	"strings"
)

// Key is the hierarchical composite every cached value is stored under.
// Construction is deterministic and injective over its components, and
// String/ParseKey round-trip so keys stay readable when debugging.
type Key struct {
	Namespace string
	Kind      string
	TenantID  string
	UserID    string
	ID        string
	Version   string
}

const keySeparator = ":"

// escapeSegment makes a component safe to embed between separators.
// "%" must be escaped first so unescaping is unambiguous.
func escapeSegment(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	return strings.ReplaceAll(s, keySeparator, "%3A")
}

func unescapeSegment(s string) string {
	s = strings.ReplaceAll(s, "%3A", keySeparator)
	return strings.ReplaceAll(s, "%25", "%")
}

// String renders the key. Two keys differing in any component always
// render differently because components are escaped before joining.
func (k Key) String() string {
	segments := []string{
		escapeSegment(k.Namespace),
		escapeSegment(k.Kind),
		escapeSegment(k.TenantID),
		escapeSegment(k.UserID),
		escapeSegment(k.ID),
		escapeSegment(k.Version),
	}
	return strings.Join(segments, keySeparator)
}

// ParseKey reverses String.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, keySeparator)
	if len(parts) != 6 {
		return Key{}, fmt.Errorf("malformed cache key %q: want 6 segments, got %d", s, len(parts))
	}
	return Key{
		Namespace: unescapeSegment(parts[0]),
		Kind:      unescapeSegment(parts[1]),
		TenantID:  unescapeSegment(parts[2]),
		UserID:    unescapeSegment(parts[3]),
		ID:        unescapeSegment(parts[4]),
		Version:   unescapeSegment(parts[5]),
	}, nil
}
