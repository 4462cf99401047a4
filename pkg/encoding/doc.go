// Package encoding serializes Go object graphs into a compact big-endian
// binary format and reads them back.
//
// Every Go type maps to a Kind. Scalars are written as fixed-width big-endian
// payloads, strings as a 4-byte length followed by UTF-8 bytes, slices, arrays
// and Collections as a 4-byte count followed by their elements, and structs as
// their exported fields in ascending name order. In Tagged mode every scalar is
// preceded by its 1-byte Kind tag. Nested pointers carry a Boolean presence
// flag.
//
// Nesting is limited: the value passed to Write sits at depth 0 and every
// struct-valued field adds one level. Writing or reading an Object deeper than
// the configured maximum, or a pointer cycle, fails with ErrRecursionLimit no
// matter which FailurePolicy is installed.
//
//	type Point struct {
//		X, Y  int32
//		Label string `graph:"label"`
//		Cache []byte `graph:"-"`
//	}
//
//	s := encoding.New(encoding.WithMode(encoding.Tagged))
//	data, err := s.Write(Point{X: 1, Y: 2, Label: "origin"})
//	...
//	p, err := encoding.ReadAs[Point](s, data)
package encoding
