package resp

// Type identifies the wire type of a Value. The constants mirror the
// RESP2 frame markers so a Value can be encoded by switching on its type.
type Type byte

const (
	SimpleString Type = '+'
	Error        Type = '-'
	Integer      Type = ':'
	BulkString   Type = '$'
	Array        Type = '*'
)

// Value is one element of the RESP2 value vocabulary: a simple string,
// an error line, an integer, a bulk string (possibly null), or an array
// of values (possibly null). The zero Value is not valid; use the
// constructors below.
type Value struct {
	Type  Type
	Str   string  // SimpleString and Error payload
	Num   int64   // Integer payload
	Bulk  []byte  // BulkString payload, ignored when Null
	Array []Value // Array payload, ignored when Null
	Null  bool    // marks a null bulk string or null array
}

// Common replies.
var (
	OK   = SimpleStringValue("OK")
	Pong = SimpleStringValue("PONG")
)

// SimpleStringValue returns a status-line value ("+<s>").
func SimpleStringValue(s string) Value {
	return Value{Type: SimpleString, Str: s}
}

// ErrorValue returns an error-line value ("-<s>").
func ErrorValue(s string) Value {
	return Value{Type: Error, Str: s}
}

// IntegerValue returns an integer value (":<n>").
func IntegerValue(n int64) Value {
	return Value{Type: Integer, Num: n}
}

// BulkValue returns a bulk-string value. A nil slice produces the null
// bulk string.
func BulkValue(b []byte) Value {
	if b == nil {
		return NullBulk()
	}
	return Value{Type: BulkString, Bulk: b}
}

// BulkStringValue returns a bulk-string value from a string.
func BulkStringValue(s string) Value {
	return Value{Type: BulkString, Bulk: []byte(s)}
}

// NullBulk returns the null bulk string ("$-1").
func NullBulk() Value {
	return Value{Type: BulkString, Null: true}
}

// ArrayValue returns an array value. Calling it with no elements yields
// the empty array, not the null array.
func ArrayValue(elems ...Value) Value {
	if elems == nil {
		elems = []Value{}
	}
	return Value{Type: Array, Array: elems}
}

// NullArray returns the null array ("*-1").
func NullArray() Value {
	return Value{Type: Array, Null: true}
}

// IsNull reports whether v is a null bulk string or null array.
func (v Value) IsNull() bool {
	return v.Null
}
