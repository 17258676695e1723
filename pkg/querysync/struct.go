package querysync

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// StructCodec maps the exported fields of a flat struct onto query keys.
//
// The key is taken from the `url` struct tag, falling back to the lowercased
// field name; `url:"-"` skips the field. Supported field kinds are strings,
// integers, floats, bools and slices of those (one entry per element).
//
// Decoding is total: a field whose value cannot be parsed keeps its zero
// value. Encoding drops zero fields and leaves keys that belong to no field
// untouched.
//
//	type Filters struct {
//		Query string   `url:"q"`
//		Page  int      `url:"page"`
//		Tags  []string `url:"tag"`
//	}
//
//	filters := querysync.New(history, history, querysync.StructCodec[Filters]())
func StructCodec[T any]() Codec[T] {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil || t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("querysync: StructCodec requires a struct type, got %v", t))
	}
	fields := structFields(t)

	return Codec[T]{
		Decode: func(v Values) T {
			var out T
			rv := reflect.ValueOf(&out).Elem()
			for _, f := range fields {
				fv := rv.Field(f.index)
				if fv.Kind() == reflect.Slice {
					decodeSlice(fv, v.GetAll(f.key))
					continue
				}
				if raw, ok := v.Lookup(f.key); ok {
					_ = setFieldValue(fv, raw)
				}
			}
			return out
		},
		Encode: func(value T, current Values) Values {
			rv := reflect.ValueOf(value)
			for _, f := range fields {
				fv := rv.Field(f.index)
				switch {
				case fv.IsZero():
					current.Del(f.key)
				case fv.Kind() == reflect.Slice:
					current.Del(f.key)
					for i := 0; i < fv.Len(); i++ {
						current.Add(f.key, formatValue(fv.Index(i)))
					}
				default:
					current.Set(f.key, formatValue(fv))
				}
			}
			return current
		},
	}
}

type structField struct {
	index int
	key   string
}

func structFields(t reflect.Type) []structField {
	var fields []structField
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		key := field.Tag.Get("url")
		if key == "" {
			key = strings.ToLower(field.Name)
		}
		if key == "-" {
			continue
		}
		fields = append(fields, structField{index: i, key: key})
	}
	return fields
}

func decodeSlice(v reflect.Value, raw []string) {
	if len(raw) == 0 {
		return
	}
	slice := reflect.MakeSlice(v.Type(), 0, len(raw))
	for _, s := range raw {
		elem := reflect.New(v.Type().Elem()).Elem()
		if err := setFieldValue(elem, s); err != nil {
			continue
		}
		slice = reflect.Append(slice, elem)
	}
	if slice.Len() > 0 {
		v.Set(slice)
	}
}

func formatValue(v reflect.Value) string {
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64)
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

func setFieldValue(v reflect.Value, s string) error {
	switch v.Kind() {
	case reflect.String:
		v.SetString(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(s, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		i, err := strconv.ParseUint(s, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetUint(i)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetFloat(f)
	case reflect.Bool:
		if s == "" {
			v.SetBool(true)
			return nil
		}
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		v.SetBool(b)
	default:
		return fmt.Errorf("querysync: unsupported kind %v", v.Kind())
	}
	return nil
}
