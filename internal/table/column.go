package table

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/compute"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Nullable scalars shared by every stage.
type (
	NullInt    = sql.Null[int64]
	NullFloat  = sql.Null[float64]
	NullString = sql.Null[string]
)

// Int returns a valid NullInt.
func Int(v int64) NullInt { return NullInt{V: v, Valid: true} }

// Float returns a valid NullFloat. NaN and infinities are stored as null.
func Float(v float64) NullFloat {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NullFloat{}
	}
	return NullFloat{V: v, Valid: true}
}

// Str returns a valid NullString.
func Str(v string) NullString { return NullString{V: v, Valid: true} }

// IntToFloat widens a NullInt.
func IntToFloat(v NullInt) NullFloat {
	if !v.Valid {
		return NullFloat{}
	}
	return Float(float64(v.V))
}

// Div divides num by den. The result is null when either operand is null or
// the denominator is zero.
func Div(num, den NullFloat) NullFloat {
	if !num.Valid || !den.Valid || den.V == 0 {
		return NullFloat{}
	}
	return Float(num.V / den.V)
}

// Kind is the physical type of a column.
type Kind uint8

const (
	String Kind = iota
	Int64
	Float64
	Bytes
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Int64:
		return "int64"
	case Float64:
		return "float64"
	case Bytes:
		return "bytes"
	default:
		return "unknown"
	}
}

var mem = memory.NewGoAllocator()

// ArrowType is the arrow storage type of k.
func (k Kind) ArrowType() arrow.DataType {
	switch k {
	case Int64:
		return arrow.PrimitiveTypes.Int64
	case Float64:
		return arrow.PrimitiveTypes.Float64
	case Bytes:
		return arrow.BinaryTypes.Binary
	default:
		return arrow.BinaryTypes.String
	}
}

// KindOf maps an arrow type to a kind. Int32 is read as Int64.
func KindOf(dt arrow.DataType) (Kind, error) {
	switch dt.ID() {
	case arrow.STRING:
		return String, nil
	case arrow.INT64, arrow.INT32:
		return Int64, nil
	case arrow.FLOAT64:
		return Float64, nil
	case arrow.BINARY:
		return Bytes, nil
	default:
		return 0, fmt.Errorf("unsupported type %s", dt)
	}
}

// Column is a named, typed vector backed by an arrow array. Appends go to
// a builder that is sealed into the array on the next read. A column is
// never mutated once it belongs to a table.
type Column struct {
	Name string
	Kind Kind

	arr arrow.Array
	bld array.Builder
}

// NewColumn allocates an empty column.
func NewColumn(name string, kind Kind, capacity int) *Column {
	c := &Column{Name: name, Kind: kind, bld: array.NewBuilder(mem, kind.ArrowType())}
	c.bld.Reserve(capacity)
	return c
}

// FromArrow wraps arr as a column, retaining it. Int32 arrays are cast to
// int64.
func FromArrow(name string, arr arrow.Array) (*Column, error) {
	kind, err := KindOf(arr.DataType())
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", name, err)
	}
	if arr.DataType().ID() == arrow.INT32 {
		cast, err := compute.CastArray(context.Background(), arr, compute.SafeCastOptions(arrow.PrimitiveTypes.Int64))
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		return &Column{Name: name, Kind: kind, arr: cast}, nil
	}
	arr.Retain()
	return &Column{Name: name, Kind: kind, arr: arr}, nil
}

// StringColumn builds a string column where empty strings are null.
func StringColumn(name string, vals []string) *Column {
	c := NewColumn(name, String, len(vals))
	for _, v := range vals {
		if v == "" {
			c.AppendNull()
			continue
		}
		c.AppendStr(Str(v))
	}
	return c
}

// IntColumn builds a fully valid int64 column.
func IntColumn(name string, vals ...int64) *Column {
	c := NewColumn(name, Int64, len(vals))
	c.builder().(*array.Int64Builder).AppendValues(vals, nil)
	return c
}

// FloatColumn builds a float64 column; NaN values become null.
func FloatColumn(name string, vals ...float64) *Column {
	c := NewColumn(name, Float64, len(vals))
	for _, v := range vals {
		c.AppendFloat(Float(v))
	}
	return c
}

// Array returns the column's cells. The array is owned by the column and
// must not be released.
func (c *Column) Array() arrow.Array { return c.data() }

func (c *Column) builder() array.Builder {
	if c.bld == nil {
		c.bld = array.NewBuilder(mem, c.Kind.ArrowType())
	}
	return c.bld
}

// data seals pending appends into the backing array.
func (c *Column) data() arrow.Array {
	if c.bld == nil || (c.arr != nil && c.bld.Len() == 0) {
		return c.arr
	}
	chunk := c.bld.NewArray()
	if c.arr == nil || c.arr.Len() == 0 {
		c.arr = chunk
		return c.arr
	}
	joined, err := array.Concatenate([]arrow.Array{c.arr, chunk}, mem)
	if err != nil {
		panic(fmt.Sprintf("table: seal %s: %v", c.Name, err))
	}
	c.arr = joined
	return c.arr
}

func (c *Column) Len() int {
	n := 0
	if c.arr != nil {
		n = c.arr.Len()
	}
	if c.bld != nil {
		n += c.bld.Len()
	}
	return n
}

func (c *Column) IsNull(i int) bool { return c.data().IsNull(i) }

// AppendNull appends a missing value.
func (c *Column) AppendNull() { c.builder().AppendNull() }

// AppendStr appends to a column of any kind, converting the value.
func (c *Column) AppendStr(v NullString) {
	if !v.Valid {
		c.AppendNull()
		return
	}
	switch c.Kind {
	case String:
		c.builder().(*array.StringBuilder).Append(v.V)
	case Int64:
		c.AppendInt(parseInt(v.V))
	case Float64:
		c.AppendFloat(parseFloat(v.V))
	case Bytes:
		c.AppendBytes([]byte(v.V))
	}
}

// AppendInt appends to an int64 or float64 column.
func (c *Column) AppendInt(v NullInt) {
	if !v.Valid {
		c.AppendNull()
		return
	}
	switch c.Kind {
	case Int64:
		c.builder().(*array.Int64Builder).Append(v.V)
	case Float64:
		c.AppendFloat(IntToFloat(v))
	case String:
		c.AppendStr(Str(strconv.FormatInt(v.V, 10)))
	default:
		c.AppendNull()
	}
}

// AppendFloat appends to a float64 or int64 column. Non-integral values
// appended to an int64 column are truncated; values outside the int64
// range are null.
func (c *Column) AppendFloat(v NullFloat) {
	if !v.Valid || math.IsNaN(v.V) || math.IsInf(v.V, 0) {
		c.AppendNull()
		return
	}
	switch c.Kind {
	case Float64:
		c.builder().(*array.Float64Builder).Append(v.V)
	case Int64:
		c.AppendInt(floatInt(math.Trunc(v.V)))
	case String:
		c.AppendStr(Str(strconv.FormatFloat(v.V, 'g', -1, 64)))
	default:
		c.AppendNull()
	}
}

// AppendBytes appends to a bytes column; nil is null.
func (c *Column) AppendBytes(b []byte) {
	if c.Kind != Bytes || b == nil {
		c.AppendNull()
		return
	}
	c.builder().(*array.BinaryBuilder).Append(b)
}

// Str reads cell i as a string. Numeric cells are formatted.
func (c *Column) Str(i int) NullString {
	arr := c.data()
	if arr.IsNull(i) {
		return NullString{}
	}
	switch a := arr.(type) {
	case *array.String:
		return Str(a.Value(i))
	case *array.Int64:
		return Str(strconv.FormatInt(a.Value(i), 10))
	case *array.Float64:
		return Str(strconv.FormatFloat(a.Value(i), 'g', -1, 64))
	case *array.Binary:
		return Str(string(a.Value(i)))
	default:
		return NullString{}
	}
}

// Int reads cell i as an integer. Strings are parsed; floats that are not
// integral or do not fit an int64 are null.
func (c *Column) Int(i int) NullInt {
	arr := c.data()
	if arr.IsNull(i) {
		return NullInt{}
	}
	switch a := arr.(type) {
	case *array.Int64:
		return Int(a.Value(i))
	case *array.Float64:
		return floatInt(a.Value(i))
	case *array.String:
		return parseInt(a.Value(i))
	default:
		return NullInt{}
	}
}

// Float reads cell i as a float.
func (c *Column) Float(i int) NullFloat {
	arr := c.data()
	if arr.IsNull(i) {
		return NullFloat{}
	}
	switch a := arr.(type) {
	case *array.Float64:
		return Float(a.Value(i))
	case *array.Int64:
		return Float(float64(a.Value(i)))
	case *array.String:
		return parseFloat(a.Value(i))
	default:
		return NullFloat{}
	}
}

// Bytes reads cell i of a bytes column.
func (c *Column) Bytes(i int) []byte {
	a, ok := c.data().(*array.Binary)
	if !ok || a.IsNull(i) {
		return nil
	}
	return a.Value(i)
}

// Text renders cell i for display; null renders as the empty string.
func (c *Column) Text(i int) string {
	v := c.Str(i)
	if !v.Valid {
		return ""
	}
	return v.V
}

// take gathers the cells at idx through the arrow take kernel. A negative
// index yields null.
func (c *Column) take(idx []int) *Column {
	src := c.data()
	if src.Len() == 0 {
		return &Column{Name: c.Name, Kind: c.Kind, arr: array.MakeArrayOfNull(mem, c.Kind.ArrowType(), len(idx))}
	}
	ib := array.NewInt64Builder(mem)
	defer ib.Release()
	ib.Reserve(len(idx))
	for _, i := range idx {
		if i < 0 {
			ib.AppendNull()
			continue
		}
		ib.Append(int64(i))
	}
	indices := ib.NewArray()
	defer indices.Release()
	out, err := compute.TakeArray(context.Background(), src, indices)
	if err != nil {
		panic(fmt.Sprintf("table: take %s: %v", c.Name, err))
	}
	return &Column{Name: c.Name, Kind: c.Kind, arr: out}
}

// filter keeps the cells whose mask entry is true.
func (c *Column) filter(mask arrow.Array) *Column {
	out, err := compute.FilterArray(context.Background(), c.data(), mask, compute.FilterOptions{})
	if err != nil {
		panic(fmt.Sprintf("table: filter %s: %v", c.Name, err))
	}
	return &Column{Name: c.Name, Kind: c.Kind, arr: out}
}

func (c *Column) renamed(name string) *Column {
	return &Column{Name: name, Kind: c.Kind, arr: c.data()}
}

// AppendFrom copies cell i of src, converting between kinds when needed.
func (c *Column) AppendFrom(src *Column, i int) {
	if src.IsNull(i) {
		c.AppendNull()
		return
	}
	switch {
	case c.Kind == src.Kind && c.Kind == Bytes:
		c.AppendBytes(src.Bytes(i))
	case c.Kind == Float64:
		c.AppendFloat(src.Float(i))
	case c.Kind == Int64 && src.Kind == Float64:
		c.AppendFloat(src.Float(i))
	case c.Kind == Int64:
		c.AppendInt(src.Int(i))
	default:
		c.AppendStr(src.Str(i))
	}
}

func (c *Column) keyAt(i int, b *strings.Builder) {
	v := c.Str(i)
	if !v.Valid {
		b.WriteByte(0)
		return
	}
	b.WriteString(v.V)
}

// floatInt converts an integral float inside the int64 range.
func floatInt(f float64) NullInt {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return NullInt{}
	}
	return Int(int64(f))
}

func parseInt(s string) NullInt {
	s = strings.TrimSpace(s)
	if s == "" {
		return NullInt{}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(n)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return NullInt{}
	}
	return floatInt(f)
}

func parseFloat(s string) NullFloat {
	s = strings.TrimSpace(s)
	if s == "" {
		return NullFloat{}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return NullFloat{}
	}
	return Float(f)
}

// ParseInt parses an integer, accepting integral float spellings such as
// "68001.0". Unparseable input yields null.
func ParseInt(s string) NullInt { return parseInt(s) }

// ParseFloat parses a float; unparseable input yields null.
func ParseFloat(s string) NullFloat { return parseFloat(s) }
