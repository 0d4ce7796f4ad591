package store

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/rs/xid"
)

// KeyString returns a canonical string for a key value, suitable for map and
// bucket keys. Numeric values of different Go types that hold the same number
// produce the same string.
func KeyString(v any) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case string:
		return "s:" + x
	case xid.ID:
		return "b:" + hex.EncodeToString(x.Bytes())
	case []byte:
		return "b:" + hex.EncodeToString(x)
	case time.Time:
		return "t:" + x.UTC().Format(time.RFC3339Nano)
	case bool:
		return "o:" + strconv.FormatBool(x)
	}
	if f, ok := toFloat(v); ok {
		return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
	}
	return fmt.Sprintf("%T:%v", v, v)
}

// ValuesEqual reports whether two stored values are equal, tolerating numeric
// width differences and the byte forms of binary ids.
func ValuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ba, ok := asBytes(a); ok {
		bb, ok := asBytes(b)
		return ok && bytes.Equal(ba, bb)
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

// matches reports whether doc satisfies every condition in match.
func matches(doc Document, match map[string]any) bool {
	for field, want := range match {
		if !ValuesEqual(doc[field], want) {
			return false
		}
	}
	return true
}

func asBytes(v any) ([]byte, bool) {
	switch x := v.(type) {
	case xid.ID:
		return x.Bytes(), true
	case []byte:
		return x, true
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
