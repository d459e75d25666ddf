package database

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Kind identifies the storage class of a Value. The set is closed: SQLite
// hands back exactly these five classes and callers bind exactly these five.
type Kind uint8

const (
	KindNull Kind = iota
	KindInteger
	KindFloat
	KindText
	KindBlob
)

// String returns the storage class name as SQLite spells it.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "NULL"
	case KindInteger:
		return "INTEGER"
	case KindFloat:
		return "FLOAT"
	case KindText:
		return "TEXT"
	case KindBlob:
		return "BLOB"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Value is a tagged union over the SQLite storage classes: 64-bit signed
// integer, 64-bit float, UTF-8 text, opaque bytes, or null. All bound
// parameters and all decoded columns are Values; no other type crosses the
// engine boundary.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    []byte
}

// Integer returns an integer Value.
func Integer(v int64) Value { return Value{kind: KindInteger, i: v} }

// Float returns a float Value.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// Text returns a text Value.
func Text(v string) Value { return Value{kind: KindText, s: v} }

// Blob returns a blob Value. The byte slice is not copied.
func Blob(v []byte) Value { return Value{kind: KindBlob, b: v} }

// Null returns the null Value.
func Null() Value { return Value{kind: KindNull} }

// Kind reports the Value's storage class.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the Value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Int64 returns the integer payload. Zero for any other kind.
func (v Value) Int64() int64 { return v.i }

// Float64 returns the float payload. Zero for any other kind.
func (v Value) Float64() float64 { return v.f }

// Text returns the text payload. Empty for any other kind.
func (v Value) Text() string { return v.s }

// Blob returns the blob payload. Nil for any other kind.
func (v Value) Blob() []byte { return v.b }

// Equal reports whether two Values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInteger:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindText:
		return v.s == o.s
	case KindBlob:
		return bytes.Equal(v.b, o.b)
	default:
		return true
	}
}

// arg converts the Value into the native argument handed to the driver for
// positional binding.
func (v Value) arg() any {
	switch v.kind {
	case KindInteger:
		return v.i
	case KindFloat:
		return v.f
	case KindText:
		return v.s
	case KindBlob:
		return v.b
	default:
		return nil
	}
}

// bindArgs converts a parameter list into driver arguments.
func bindArgs(params []Value) []any {
	if len(params) == 0 {
		return nil
	}
	args := make([]any, len(params))
	for i, p := range params {
		args[i] = p.arg()
	}
	return args
}

// decodeValue maps a scanned column back into the closed Value set. The
// driver yields int64, float64, string, []byte and nil directly; bool and
// time.Time can appear for columns with declared affinity and are normalized
// so callers never see an open-ended type.
func decodeValue(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case int64:
		return Integer(t), nil
	case float64:
		return Float(t), nil
	case string:
		return Text(t), nil
	case []byte:
		// database/sql may reuse the buffer on the next Scan.
		return Blob(append([]byte(nil), t...)), nil
	case bool:
		if t {
			return Integer(1), nil
		}
		return Integer(0), nil
	case time.Time:
		return Text(t.Format(time.RFC3339Nano)), nil
	default:
		return Value{}, fmt.Errorf("unsupported column value of type %T", raw)
	}
}

// Rows is a decoded result set: column names from the statement metadata and
// one positionally aligned Value slice per row. An empty set keeps its
// columns, which is distinct from a set with no columns at all.
type Rows struct {
	Columns []string  `json:"columns"`
	Rows    [][]Value `json:"rows"`
}

// blobEnvelope is the JSON wire form of a blob parameter or column. A bare
// JSON string always means text; blobs travel base64-wrapped to keep the two
// distinguishable.
type blobEnvelope struct {
	Blob string `json:"blob"`
}

// MarshalJSON encodes integers and floats as numbers, text as a string, null
// as null and blobs as {"blob": "<base64>"}.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInteger:
		return strconv.AppendInt(nil, v.i, 10), nil
	case KindFloat:
		return json.Marshal(v.f)
	case KindText:
		return json.Marshal(v.s)
	case KindBlob:
		return json.Marshal(blobEnvelope{Blob: base64.StdEncoding.EncodeToString(v.b)})
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON. Numbers are
// kept exact: anything that parses as a 64-bit integer is an integer,
// everything else is a float.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case nil:
		*v = Null()
	case json.Number:
		if i, err := strconv.ParseInt(t.String(), 10, 64); err == nil {
			*v = Integer(i)
			return nil
		}
		f, err := t.Float64()
		if err != nil {
			return fmt.Errorf("invalid numeric parameter %q", t.String())
		}
		*v = Float(f)
	case string:
		*v = Text(t)
	case bool:
		if t {
			*v = Integer(1)
		} else {
			*v = Integer(0)
		}
	case map[string]any:
		enc, ok := t["blob"].(string)
		if !ok {
			return fmt.Errorf("object parameter must be a blob envelope")
		}
		b, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return fmt.Errorf("invalid blob parameter: %w", err)
		}
		*v = Blob(b)
	default:
		return fmt.Errorf("unsupported parameter of type %T", raw)
	}
	return nil
}
