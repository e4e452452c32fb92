package plinkbgen

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/carbocation/pfx"
)

// GenomicInterval is one contig-anchored coordinate interval in the global
// coordinate space. Immutable once constructed.
type GenomicInterval struct {
	Contig string
	Start  uint64
	End    uint64
}

func (g GenomicInterval) String() string {
	return fmt.Sprintf("%s:%d-%d", g.Contig, g.Start, g.End)
}

// FieldKind is the value kind of one named genomic field.
type FieldKind int

const (
	FieldInt FieldKind = iota
	FieldFloat
	FieldChar
	FieldString
)

func (k FieldKind) String() string {
	switch k {
	case FieldInt:
		return "int"
	case FieldFloat:
		return "float"
	case FieldChar:
		return "char"
	case FieldString:
		return "string"
	}

	return "unknown"
}

// GenomicFieldType describes the shape of one named field: value kind, arity
// (fixed vs. variable length), dimensionality, and whether the field carries
// phase information (a genotype field). Immutable; resolved once per query.
type GenomicFieldType struct {
	Kind        FieldKind
	FixedLength bool
	Length      int // element count when FixedLength
	Dimensions  int
	Phased      bool
}

// FieldTypeMap associates field names with their types. It is populated once
// before the scan begins and never mutated afterwards.
type FieldTypeMap map[string]GenomicFieldType

// Lookup returns the type registered for name. An unknown name is a
// value-range error.
func (m FieldTypeMap) Lookup(name string) (GenomicFieldType, error) {
	t, ok := m[name]
	if !ok {
		return GenomicFieldType{}, pfx.Err(fmt.Errorf("%w: no field type registered for %q", ErrValueRange, name))
	}

	return t, nil
}

// GenomicField is one named, typed, raw value buffer with a declared element
// count. The buffer is borrowed from the query engine for the duration of a
// single processor callback and must not be retained past it.
type GenomicField struct {
	Name      string
	buf       []byte
	nElements int
}

// NewGenomicField wraps a borrowed buffer. nElements is the declared element
// count, not the byte length.
func NewGenomicField(name string, buf []byte, nElements int) GenomicField {
	return GenomicField{Name: name, buf: buf, nElements: nElements}
}

// NumElements returns the declared element count.
func (f GenomicField) NumElements() int {
	return f.nElements
}

func (f GenomicField) checkOffset(offset, width int) error {
	if offset < 0 || offset >= f.nElements {
		return pfx.Err(fmt.Errorf("%w: offset %d out of range for field %q with %d elements", ErrValueRange, offset, f.Name, f.nElements))
	}
	if (offset+1)*width > len(f.buf) {
		return pfx.Err(fmt.Errorf("%w: field %q buffer holds %d bytes, element %d needs %d", ErrValueRange, f.Name, len(f.buf), offset, (offset+1)*width))
	}

	return nil
}

// IntAt returns the signed 32-bit element at offset.
func (f GenomicField) IntAt(offset int) (int32, error) {
	if err := f.checkOffset(offset, 4); err != nil {
		return 0, err
	}

	return int32(binary.LittleEndian.Uint32(f.buf[offset*4:])), nil
}

// FloatAt returns the 32-bit float element at offset.
func (f GenomicField) FloatAt(offset int) (float32, error) {
	if err := f.checkOffset(offset, 4); err != nil {
		return 0, err
	}

	return math.Float32frombits(binary.LittleEndian.Uint32(f.buf[offset*4:])), nil
}

// CharAt returns the single-byte element at offset.
func (f GenomicField) CharAt(offset int) (byte, error) {
	if err := f.checkOffset(offset, 1); err != nil {
		return 0, err
	}

	return f.buf[offset], nil
}

// StringValue returns the whole buffer as a string. The result is a copy and
// safe to retain.
func (f GenomicField) StringValue() string {
	return string(f.buf)
}
