package encoding

import (
	"fmt"
	"reflect"

	"github.com/zeusync/graphcodec/pkg/encoding/wireformat"
)

// Kind is the wire classification of a value. Its numeric value is the tag
// byte emitted in Tagged mode, so existing values must never be renumbered.
type Kind uint8

const (
	KindBoolean    Kind = 0
	KindByte       Kind = 1
	KindChar       Kind = 2
	KindDouble     Kind = 3
	KindFloat      Kind = 4
	KindInteger    Kind = 5
	KindLong       Kind = 6
	KindObject     Kind = 7
	KindShort      Kind = 8
	KindString     Kind = 9
	KindCollection Kind = 10
	KindArray      Kind = 11

	KindInvalid Kind = 0xFF
)

var kindNames = map[Kind]string{
	KindBoolean:    "Boolean",
	KindByte:       "Byte",
	KindChar:       "Char",
	KindDouble:     "Double",
	KindFloat:      "Float",
	KindInteger:    "Integer",
	KindLong:       "Long",
	KindObject:     "Object",
	KindShort:      "Short",
	KindString:     "String",
	KindCollection: "Collection",
	KindArray:      "Array",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Valid reports whether k is one of the defined kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// IsScalar reports whether k is written directly by the stream writer.
func (k Kind) IsScalar() bool {
	switch k {
	case KindBoolean, KindByte, KindChar, KindShort, KindInteger, KindLong, KindFloat, KindDouble, KindString:
		return true
	default:
		return false
	}
}

func (k Kind) IsContainer() bool {
	return k == KindArray || k == KindCollection
}

// Size returns the fixed payload width of k, or -1 when the width depends on
// the value.
func (k Kind) Size() int {
	switch k {
	case KindBoolean:
		return wireformat.BoolSize
	case KindByte:
		return wireformat.ByteSize
	case KindChar:
		return wireformat.CharSize
	case KindShort:
		return wireformat.ShortSize
	case KindInteger:
		return wireformat.IntSize
	case KindLong:
		return wireformat.LongSize
	case KindFloat:
		return wireformat.FloatSize
	case KindDouble:
		return wireformat.DoubleSize
	default:
		return -1
	}
}

// Char is a single UTF-16 code unit. Go has no dedicated character type that
// is distinct from the integer kinds, so fields that should travel as Char use
// this type.
type Char uint16

var (
	charType        = reflect.TypeOf(Char(0))
	collectionType  = reflect.TypeOf((*Collection)(nil)).Elem()
	marshalerType   = reflect.TypeOf((*Marshaler)(nil)).Elem()
	unmarshalerType = reflect.TypeOf((*Unmarshaler)(nil)).Elem()
)

// Classify returns the Kind of a runtime value. A nil value has no wire
// representation.
func Classify(v any) (Kind, error) {
	if v == nil {
		return KindInvalid, unsupported(nil, "nil value")
	}
	return ClassifyType(reflect.TypeOf(v))
}

// ClassifyType returns the Kind of a type descriptor. Pointer types classify as
// the type they point to.
func ClassifyType(t reflect.Type) (Kind, error) {
	if t == nil {
		return KindInvalid, unsupported(nil, "nil type")
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Array, reflect.Slice:
		return KindArray, nil
	}

	if implementsCollection(t) {
		return KindCollection, nil
	}

	if t == charType {
		return KindChar, nil
	}

	switch t.Kind() {
	case reflect.Bool:
		return KindBoolean, nil
	case reflect.Int8, reflect.Uint8:
		return KindByte, nil
	case reflect.Int16, reflect.Uint16:
		return KindShort, nil
	case reflect.Int32, reflect.Uint32:
		return KindInteger, nil
	case reflect.Int64, reflect.Uint64, reflect.Int, reflect.Uint:
		return KindLong, nil
	case reflect.Float32:
		return KindFloat, nil
	case reflect.Float64:
		return KindDouble, nil
	case reflect.String:
		return KindString, nil
	case reflect.Interface:
		return KindObject, nil
	case reflect.Struct:
		if isOpaqueStruct(t) {
			return KindInvalid, unsupported(t, "struct has no exported fields")
		}
		return KindObject, nil
	default:
		if hasGraphMethods(t) {
			return KindObject, nil
		}
		return KindInvalid, unsupported(t, "no wire representation for "+t.Kind().String())
	}
}

func implementsCollection(t reflect.Type) bool {
	return t.Implements(collectionType) || reflect.PointerTo(t).Implements(collectionType)
}

// isOpaqueStruct reports whether t hides all of its state. Types with their own
// graph methods are never opaque.
func isOpaqueStruct(t reflect.Type) bool {
	if t.NumField() == 0 {
		return false
	}
	if hasGraphMethods(t) {
		return false
	}
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).IsExported() {
			return false
		}
	}
	return true
}

func hasGraphMethods(t reflect.Type) bool {
	pt := reflect.PointerTo(t)
	return pt.Implements(marshalerType) || pt.Implements(unmarshalerType)
}
