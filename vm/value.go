package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Value: tagged value union
// ---------------------------------------------------------------------------

// Kind identifies the variant of a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindSymbol
	KindArray
	KindTable
	KindBlock
	KindClass
	KindInstance
)

var kindNames = [...]string{
	KindNil:      "Nil",
	KindBool:     "Bool",
	KindInt:      "Int",
	KindFloat:    "Float",
	KindString:   "String",
	KindSymbol:   "Symbol",
	KindArray:    "Array",
	KindTable:    "Table",
	KindBlock:    "Block",
	KindClass:    "Class",
	KindInstance: "Instance",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Value is a tagged sum over every Loom value variant. Primitive payloads
// live inline; Array, Table, Block, Class and Instance are owned heap
// references behind ref.
type Value struct {
	kind Kind
	n    int64   // Int payload; Bool stored as 0/1
	f    float64 // Float payload
	str  string  // String and Symbol payload
	ref  any     // *Array, *Table, *Block, *Class, *Instance
}

// Pre-defined singleton values.
var (
	Nil   = Value{kind: KindNil}
	True  = Value{kind: KindBool, n: 1}
	False = Value{kind: KindBool, n: 0}
)

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// FromInt creates an Int value.
func FromInt(n int64) Value {
	return Value{kind: KindInt, n: n}
}

// FromFloat creates a Float value.
func FromFloat(f float64) Value {
	return Value{kind: KindFloat, f: f}
}

// FromBool creates a Bool value.
func FromBool(b bool) Value {
	if b {
		return True
	}
	return False
}

// FromString creates a String value.
func FromString(s string) Value {
	return Value{kind: KindString, str: s}
}

// FromSymbol creates a Symbol value.
func FromSymbol(s string) Value {
	return Value{kind: KindSymbol, str: s}
}

// FromArray creates an Array value.
func FromArray(a *Array) Value {
	return Value{kind: KindArray, ref: a}
}

// FromTable creates a Table value.
func FromTable(t *Table) Value {
	return Value{kind: KindTable, ref: t}
}

// FromBlock creates a Block value.
func FromBlock(b *Block) Value {
	return Value{kind: KindBlock, ref: b}
}

// FromClass creates a Class value.
func FromClass(c *Class) Value {
	return Value{kind: KindClass, ref: c}
}

// FromInstance creates an Instance value.
func FromInstance(inst *Instance) Value {
	return Value{kind: KindInstance, ref: inst}
}

// ---------------------------------------------------------------------------
// Type checking
// ---------------------------------------------------------------------------

// Kind returns the variant tag of the value.
func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNil() bool      { return v.kind == KindNil }
func (v Value) IsBool() bool     { return v.kind == KindBool }
func (v Value) IsInt() bool      { return v.kind == KindInt }
func (v Value) IsFloat() bool    { return v.kind == KindFloat }
func (v Value) IsString() bool   { return v.kind == KindString }
func (v Value) IsSymbol() bool   { return v.kind == KindSymbol }
func (v Value) IsArray() bool    { return v.kind == KindArray }
func (v Value) IsTable() bool    { return v.kind == KindTable }
func (v Value) IsBlock() bool    { return v.kind == KindBlock }
func (v Value) IsClass() bool    { return v.kind == KindClass }
func (v Value) IsInstance() bool { return v.kind == KindInstance }

// IsNumber returns true for Int and Float values.
func (v Value) IsNumber() bool {
	return v.kind == KindInt || v.kind == KindFloat
}

// ---------------------------------------------------------------------------
// Unwrap helpers
// ---------------------------------------------------------------------------

// Int returns the Int payload. Panics if v is not an Int.
func (v Value) Int() int64 {
	if v.kind != KindInt {
		panic("Value.Int: not an Int")
	}
	return v.n
}

// Float returns the Float payload. Panics if v is not a Float.
func (v Value) Float() float64 {
	if v.kind != KindFloat {
		panic("Value.Float: not a Float")
	}
	return v.f
}

// Bool returns the Bool payload. Panics if v is not a Bool.
func (v Value) Bool() bool {
	if v.kind != KindBool {
		panic("Value.Bool: not a Bool")
	}
	return v.n != 0
}

// Str returns the String or Symbol payload. Panics otherwise.
func (v Value) Str() string {
	if v.kind != KindString && v.kind != KindSymbol {
		panic("Value.Str: not a String or Symbol")
	}
	return v.str
}

// AsFloat widens Int to Float and returns Float payloads unchanged.
// Panics if v is not numeric.
func (v Value) AsFloat() float64 {
	switch v.kind {
	case KindInt:
		return float64(v.n)
	case KindFloat:
		return v.f
	}
	panic("Value.AsFloat: not a number")
}

// AsArray returns the Array payload, or nil if v is not an Array.
func (v Value) AsArray() *Array {
	if v.kind != KindArray {
		return nil
	}
	return v.ref.(*Array)
}

// AsTable returns the Table payload, or nil if v is not a Table.
func (v Value) AsTable() *Table {
	if v.kind != KindTable {
		return nil
	}
	return v.ref.(*Table)
}

// AsBlock returns the Block payload, or nil if v is not a Block.
func (v Value) AsBlock() *Block {
	if v.kind != KindBlock {
		return nil
	}
	return v.ref.(*Block)
}

// AsClass returns the Class payload, or nil if v is not a Class.
func (v Value) AsClass() *Class {
	if v.kind != KindClass {
		return nil
	}
	return v.ref.(*Class)
}

// AsInstance returns the Instance payload, or nil if v is not an Instance.
func (v Value) AsInstance() *Instance {
	if v.kind != KindInstance {
		return nil
	}
	return v.ref.(*Instance)
}

// ---------------------------------------------------------------------------
// Truthiness
// ---------------------------------------------------------------------------

// IsTruthy returns true if v is considered truthy in conditionals.
// Only false and nil are falsy.
func (v Value) IsTruthy() bool {
	return !(v.kind == KindNil || (v.kind == KindBool && v.n == 0))
}

// ---------------------------------------------------------------------------
// Equality
// ---------------------------------------------------------------------------

// Identical reports identity: payload equality for primitive variants,
// pointer identity for heap variants.
func (v Value) Identical(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNil:
		return true
	case KindBool, KindInt:
		return v.n == other.n
	case KindFloat:
		return v.f == other.f
	case KindString, KindSymbol:
		return v.str == other.str
	default:
		return v.ref == other.ref
	}
}

// Equals reports default equality: structural for primitives, strings
// and symbols (with Int/Float widening), identity for heap variants.
// A class that defines = overrides this at dispatch time.
func (v Value) Equals(other Value) bool {
	if v.IsNumber() && other.IsNumber() {
		if v.kind == KindInt && other.kind == KindInt {
			return v.n == other.n
		}
		return v.AsFloat() == other.AsFloat()
	}
	return v.Identical(other)
}

// ---------------------------------------------------------------------------
// Printing
// ---------------------------------------------------------------------------

// String renders the default printString of a value.
func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.n != 0 {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.FormatInt(v.n, 10)
	case KindFloat:
		s := strconv.FormatFloat(v.f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	case KindString:
		return v.str
	case KindSymbol:
		return "#" + v.str
	case KindArray:
		arr := v.ref.(*Array)
		parts := make([]string, len(arr.Elems))
		for i, e := range arr.Elems {
			parts[i] = e.String()
		}
		return "#(" + strings.Join(parts, " ") + ")"
	case KindTable:
		tbl := v.ref.(*Table)
		var sb strings.Builder
		sb.WriteString("#{")
		for i, k := range tbl.keys {
			if i > 0 {
				sb.WriteString(". ")
			}
			val, _ := tbl.At(k)
			sb.WriteString(k.String())
			sb.WriteString(" -> ")
			sb.WriteString(val.String())
		}
		sb.WriteString("}")
		return sb.String()
	case KindBlock:
		blk := v.ref.(*Block)
		return fmt.Sprintf("a Block/%d", len(blk.Parameters))
	case KindClass:
		return v.ref.(*Class).Name
	case KindInstance:
		inst := v.ref.(*Instance)
		if inst.Class != nil {
			return article(inst.Class.Name) + " " + inst.Class.Name
		}
		return "an Object"
	}
	return "?"
}

func article(name string) string {
	if name == "" {
		return "an"
	}
	switch name[0] {
	case 'A', 'E', 'I', 'O', 'U':
		return "an"
	}
	return "a"
}

// ---------------------------------------------------------------------------
// Array
// ---------------------------------------------------------------------------

// Array is a mutable, fixed-order sequence of values.
type Array struct {
	Elems []Value
}

// NewArray creates an array from the given elements.
func NewArray(elems []Value) *Array {
	return &Array{Elems: elems}
}

// ---------------------------------------------------------------------------
// Table
// ---------------------------------------------------------------------------

// tableKey is the comparable projection of a Value used for table
// lookup: payload for primitives, pointer identity for heap variants.
type tableKey struct {
	kind Kind
	n    int64
	f    float64
	str  string
	ref  any
}

func keyOf(v Value) tableKey {
	return tableKey{kind: v.kind, n: v.n, f: v.f, str: v.str, ref: v.ref}
}

// Table is an insertion-ordered mapping from values to values.
type Table struct {
	keys  []Value
	index map[tableKey]int
	vals  []Value
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{index: make(map[tableKey]int)}
}

// At returns the value stored under key, and whether it was present.
func (t *Table) At(key Value) (Value, bool) {
	if i, ok := t.index[keyOf(key)]; ok {
		return t.vals[i], true
	}
	return Nil, false
}

// AtPut stores value under key, preserving first-insertion order.
func (t *Table) AtPut(key, value Value) {
	k := keyOf(key)
	if i, ok := t.index[k]; ok {
		t.vals[i] = value
		return
	}
	t.index[k] = len(t.keys)
	t.keys = append(t.keys, key)
	t.vals = append(t.vals, value)
}

// RemoveKey removes key from the table, reporting whether it was present.
func (t *Table) RemoveKey(key Value) bool {
	k := keyOf(key)
	i, ok := t.index[k]
	if !ok {
		return false
	}
	t.keys = append(t.keys[:i], t.keys[i+1:]...)
	t.vals = append(t.vals[:i], t.vals[i+1:]...)
	delete(t.index, k)
	for j := i; j < len(t.keys); j++ {
		t.index[keyOf(t.keys[j])] = j
	}
	return true
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.keys)
}

// Keys returns the keys in insertion order.
func (t *Table) Keys() []Value {
	out := make([]Value, len(t.keys))
	copy(out, t.keys)
	return out
}
