package querysync

import (
	"net/url"
	"slices"
	"strings"
)

// Pair is one key/value entry of a query string.
type Pair struct {
	Key   string
	Value string
}

// Values is an ordered multi-map of query parameters. Unlike url.Values it
// keeps the order in which entries appear, so re-encoding an unchanged query
// reproduces it.
//
// Values has value semantics for reads but its mutating methods work in
// place; use Clone before handing a Values to code that may modify it.
type Values []Pair

// ParseValues parses a raw query string, with or without the leading '?'.
// It never fails: escapes that cannot be decoded are kept verbatim.
func ParseValues(raw string) Values {
	raw = strings.TrimPrefix(raw, "?")
	if raw == "" {
		return nil
	}
	var v Values
	for part := range strings.SplitSeq(raw, "&") {
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		v = append(v, Pair{Key: unescape(key), Value: unescape(value)})
	}
	return v
}

func unescape(s string) string {
	out, err := url.QueryUnescape(s)
	if err != nil {
		return strings.ReplaceAll(s, "+", " ")
	}
	return out
}

// Get returns the first value for key, or "" if key is absent.
func (v Values) Get(key string) string {
	value, _ := v.Lookup(key)
	return value
}

// Lookup returns the first value for key and whether key is present.
func (v Values) Lookup(key string) (string, bool) {
	for _, p := range v {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// GetAll returns every value for key in order.
func (v Values) GetAll(key string) []string {
	var out []string
	for _, p := range v {
		if p.Key == key {
			out = append(out, p.Value)
		}
	}
	return out
}

// Has reports whether key is present.
func (v Values) Has(key string) bool {
	_, ok := v.Lookup(key)
	return ok
}

// Set replaces the first entry for key with value and removes the others.
// A missing key is appended.
func (v *Values) Set(key, value string) {
	out := (*v)[:0]
	found := false
	for _, p := range *v {
		if p.Key != key {
			out = append(out, p)
			continue
		}
		if !found {
			out = append(out, Pair{Key: key, Value: value})
			found = true
		}
	}
	if !found {
		out = append(out, Pair{Key: key, Value: value})
	}
	*v = out
}

// Add appends an entry.
func (v *Values) Add(key, value string) {
	*v = append(*v, Pair{Key: key, Value: value})
}

// Del removes every entry for key.
func (v *Values) Del(key string) {
	*v = slices.DeleteFunc(*v, func(p Pair) bool { return p.Key == key })
}

// Keys returns the distinct keys in order of first appearance.
func (v Values) Keys() []string {
	var keys []string
	seen := make(map[string]struct{}, len(v))
	for _, p := range v {
		if _, ok := seen[p.Key]; ok {
			continue
		}
		seen[p.Key] = struct{}{}
		keys = append(keys, p.Key)
	}
	return keys
}

// Len returns the number of entries.
func (v Values) Len() int { return len(v) }

// Sort orders entries by key. Entries sharing a key keep their relative order.
func (v Values) Sort() {
	slices.SortStableFunc(v, func(a, b Pair) int { return strings.Compare(a.Key, b.Key) })
}

// Encode serializes the entries in order as application/x-www-form-urlencoded.
func (v Values) Encode() string {
	var b strings.Builder
	for i, p := range v {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}

// String is the same as Encode.
func (v Values) String() string { return v.Encode() }

// Clone returns an independent copy.
func (v Values) Clone() Values {
	return slices.Clone(v)
}

// FromURLValues converts url.Values. Keys are sorted since url.Values is
// unordered.
func FromURLValues(in url.Values) Values {
	var v Values
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		for _, value := range in[k] {
			v.Add(k, value)
		}
	}
	return v
}

// URLValues converts v to url.Values.
func (v Values) URLValues() url.Values {
	out := make(url.Values, len(v))
	for _, p := range v {
		out[p.Key] = append(out[p.Key], p.Value)
	}
	return out
}
