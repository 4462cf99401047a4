package encoding

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// TagName is the struct tag consulted while deriving a schema.
//
//	Secret string `graph:"-"`      // never serialized
//	Name   string `graph:"label"`  // serialized and ordered as "label"
const TagName = "graph"

// FieldDescriptor describes one serializable field of a record type.
type FieldDescriptor struct {
	Name     string // wire name, the sort key
	GoName   string
	Type     reflect.Type
	Kind     Kind // KindInvalid when Type has no wire representation
	Excluded bool

	index   int
	kindErr *Error
}

// Schema is the ordered field list of a struct type. Fields holds the included
// fields sorted by name; that order is the encoding order.
type Schema struct {
	Type     reflect.Type
	Fields   []FieldDescriptor
	Excluded []string

	fingerprint uint64
}

// Fingerprint identifies the shallow layout of the schema: field names and
// kinds in encoding order. Schemas with equal fingerprints write their
// top-level fields identically.
func (s *Schema) Fingerprint() uint64 {
	return s.fingerprint
}

// Field looks up an included field by wire name.
func (s *Schema) Field(name string) (FieldDescriptor, bool) {
	i, found := slices.BinarySearchFunc(s.Fields, name, func(f FieldDescriptor, n string) int {
		return strings.Compare(f.Name, n)
	})
	if !found {
		return FieldDescriptor{}, false
	}
	return s.Fields[i], true
}

func (s *Schema) String() string {
	var b strings.Builder
	b.WriteString(s.Type.String())
	b.WriteByte('{')
	for i, f := range s.Fields {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(f.Name)
		b.WriteByte(':')
		b.WriteString(f.Kind.String())
	}
	b.WriteByte('}')
	return b.String()
}

// deriveSchema compiles t into a Schema. exclude holds Go or wire field names
// that must be left out in addition to those tagged `graph:"-"`.
func deriveSchema(t reflect.Type, exclude map[string]struct{}) (*Schema, error) {
	if t.Kind() != reflect.Struct {
		return nil, unsupported(t, "schemas describe struct types")
	}

	all := make([]FieldDescriptor, 0, t.NumField())
	seen := make(map[string]string, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}

		name, excluded := parseTag(sf)
		if prev, dup := seen[name]; dup {
			return nil, unsupported(t, fmt.Sprintf("fields %s and %s share the name %q", prev, sf.Name, name))
		}
		seen[name] = sf.Name

		if _, ok := exclude[sf.Name]; ok {
			excluded = true
		}
		if _, ok := exclude[name]; ok {
			excluded = true
		}

		fd := FieldDescriptor{
			Name:     name,
			GoName:   sf.Name,
			Type:     sf.Type,
			Kind:     KindInvalid,
			Excluded: excluded,
			index:    i,
		}
		if !excluded {
			kind, err := ClassifyType(sf.Type)
			fd.Kind = kind
			if err != nil {
				fd.kindErr = asError(err, ErrUnsupportedType)
			}
		}
		all = append(all, fd)
	}

	slices.SortFunc(all, func(a, b FieldDescriptor) int {
		return strings.Compare(a.Name, b.Name)
	})

	s := &Schema{Type: t, Fields: make([]FieldDescriptor, 0, len(all))}
	h := xxhash.New()
	for _, fd := range all {
		if fd.Excluded {
			s.Excluded = append(s.Excluded, fd.Name)
			continue
		}
		s.Fields = append(s.Fields, fd)
		_, _ = h.WriteString(fd.Name)
		_, _ = h.Write([]byte{0, byte(fd.Kind)})
	}
	s.fingerprint = h.Sum64()
	return s, nil
}

func parseTag(sf reflect.StructField) (name string, excluded bool) {
	tag, ok := sf.Tag.Lookup(TagName)
	if !ok {
		return sf.Name, false
	}
	if tag == "-" {
		return sf.Name, true
	}
	name, _, _ = strings.Cut(tag, ",")
	if name == "" {
		name = sf.Name
	}
	return name, false
}
