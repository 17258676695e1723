package querysync

import (
	"encoding/base64"
	"encoding/json"
	"slices"
	"strconv"
	"strings"
)

// Identity passes the raw value through. Absent decodes to "".
func Identity() Transform[string] {
	return Transform[string]{
		Decode: func(raw string, _ bool) string { return raw },
		Encode: func(value string) (string, bool) { return value, true },
	}
}

// Optional passes the raw value through and keeps absence visible: absent
// decodes to nil and nil removes the key.
func Optional() Transform[*string] {
	return Transform[*string]{
		Decode: func(raw string, ok bool) *string {
			if !ok {
				return nil
			}
			return &raw
		},
		Encode: func(value *string) (string, bool) {
			if value == nil {
				return "", false
			}
			return *value, true
		},
	}
}

// String decodes an absent key to def and removes the key when the value
// equals def.
func String(def string) Transform[string] {
	return Transform[string]{
		Decode: func(raw string, ok bool) string {
			if !ok {
				return def
			}
			return raw
		},
		Encode: func(value string) (string, bool) {
			if value == def {
				return "", false
			}
			return value, true
		},
	}
}

// Int decodes to def when the key is absent or not an integer, and removes
// the key when the value equals def.
func Int(def int) Transform[int] {
	return Transform[int]{
		Decode: func(raw string, ok bool) int {
			if !ok {
				return def
			}
			n, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				return def
			}
			return n
		},
		Encode: func(value int) (string, bool) {
			if value == def {
				return "", false
			}
			return strconv.Itoa(value), true
		},
	}
}

// Float decodes to def when the key is absent or not a number, and removes
// the key when the value equals def.
func Float(def float64) Transform[float64] {
	return Transform[float64]{
		Decode: func(raw string, ok bool) float64 {
			if !ok {
				return def
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return def
			}
			return f
		},
		Encode: func(value float64) (string, bool) {
			if value == def {
				return "", false
			}
			return strconv.FormatFloat(value, 'f', -1, 64), true
		},
	}
}

// Bool is a presence flag: true is encoded as the key with an empty value,
// false as the key being absent.
func Bool() Transform[bool] {
	return Transform[bool]{
		Decode: func(_ string, ok bool) bool { return ok },
		Encode: func(value bool) (string, bool) { return "", value },
	}
}

// JSON stores the value as base64url-encoded JSON. Values that fail to
// decode become def; def itself removes the key.
func JSON[T any](def T) Transform[T] {
	defRaw, _ := json.Marshal(def)
	return Transform[T]{
		Decode: func(raw string, ok bool) T {
			if !ok || raw == "" {
				return def
			}
			data, err := base64.RawURLEncoding.DecodeString(raw)
			if err != nil {
				return def
			}
			var out T
			if err := json.Unmarshal(data, &out); err != nil {
				return def
			}
			return out
		},
		Encode: func(value T) (string, bool) {
			data, err := json.Marshal(value)
			if err != nil || string(data) == string(defRaw) {
				return "", false
			}
			return base64.RawURLEncoding.EncodeToString(data), true
		},
	}
}

// Comma stores a list as comma-separated values. An absent key decodes to
// def and def encodes as an absent key; a present empty key is the empty
// list. Commas and backslashes inside elements are escaped with a
// backslash, and a list holding one empty element is written as a lone
// backslash.
func Comma(def []string) Transform[[]string] {
	return Transform[[]string]{
		Decode: func(raw string, ok bool) []string {
			switch {
			case !ok:
				return def
			case raw == "":
				return []string{}
			case raw == `\`:
				return []string{""}
			}
			return splitComma(raw)
		},
		Encode: func(value []string) (string, bool) {
			if slices.Equal(value, def) {
				return "", false
			}
			if len(value) == 1 && value[0] == "" {
				return `\`, true
			}
			escaped := make([]string, len(value))
			for i, elem := range value {
				escaped[i] = commaEscaper.Replace(elem)
			}
			return strings.Join(escaped, ","), true
		},
	}
}

var commaEscaper = strings.NewReplacer(`\`, `\\`, ",", `\,`)

// splitComma splits raw on unescaped commas and unescapes each element. A
// trailing lone backslash is kept literally.
func splitComma(raw string) []string {
	var (
		out  []string
		elem strings.Builder
	)
	for i := 0; i < len(raw); i++ {
		switch c := raw[i]; {
		case c == '\\' && i+1 < len(raw):
			i++
			elem.WriteByte(raw[i])
		case c == ',':
			out = append(out, elem.String())
			elem.Reset()
		default:
			elem.WriteByte(c)
		}
	}
	return append(out, elem.String())
}
