package encoding

import (
	"fmt"
	"reflect"
)

// Collection is implemented by container types that expose their elements
// for iteration. Range must visit exactly Len elements in a stable order.
type Collection interface {
	Len() int
	Range(fn func(elem any) error) error
}

// CollectionBuilder is the decoding side of Collection, implemented on the
// pointer receiver.
type CollectionBuilder interface {
	// ElemType is the static type every decoded element is read as.
	ElemType() reflect.Type
	// Reset empties the collection, reserving room for n elements.
	Reset(n int)
	Add(elem any) error
}

var (
	_ Collection        = List[int]{}
	_ CollectionBuilder = (*List[int])(nil)
	_ identifier        = List[int]{}
)

// List is an ordered Collection backed by a slice. Unlike a plain slice it is
// classified as KindCollection.
type List[T any] struct {
	items []T
}

// NewList returns a list holding items in order.
func NewList[T any](items ...T) List[T] {
	return List[T]{items: append([]T(nil), items...)}
}

func (l List[T]) Len() int {
	return len(l.items)
}

func (l List[T]) At(i int) T {
	return l.items[i]
}

// Items returns a copy of the elements.
func (l List[T]) Items() []T {
	return append([]T(nil), l.items...)
}

func (l List[T]) Range(fn func(elem any) error) error {
	for _, item := range l.items {
		if err := fn(item); err != nil {
			return err
		}
	}
	return nil
}

func (l *List[T]) Append(items ...T) {
	l.items = append(l.items, items...)
}

func (l *List[T]) ElemType() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func (l *List[T]) Reset(n int) {
	l.items = make([]T, 0, n)
}

func (l *List[T]) Add(elem any) error {
	item, ok := elem.(T)
	if !ok {
		return fmt.Errorf("list of %s cannot hold %T", l.ElemType(), elem)
	}
	l.items = append(l.items, item)
	return nil
}

func (l List[T]) identity() (uintptr, int) {
	if len(l.items) == 0 {
		return 0, 0
	}
	return reflect.ValueOf(l.items).Pointer(), len(l.items)
}
