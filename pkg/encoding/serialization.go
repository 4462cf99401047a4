package encoding

// Marshaler is implemented by record types that write their own fields. The
// writer is positioned where the record's fields would start; the type is
// still an Object for depth accounting.
type Marshaler interface {
	MarshalGraph(w *Writer) error
}

// Unmarshaler reads back what MarshalGraph wrote. It must be implemented on
// the pointer receiver.
type Unmarshaler interface {
	UnmarshalGraph(r *Reader) error
}

// Serializable provides both directions of a custom record encoding.
type Serializable interface {
	Marshaler
	Unmarshaler
}
