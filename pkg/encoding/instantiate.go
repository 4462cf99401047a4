package encoding

import (
	"fmt"
	"reflect"
)

// Instantiator creates the values that reading fills in. The returned value
// must have type t; it is made addressable by the caller if it is not.
type Instantiator interface {
	Instantiate(t reflect.Type) (reflect.Value, error)
}

type InstantiatorFunc func(t reflect.Type) (reflect.Value, error)

func (f InstantiatorFunc) Instantiate(t reflect.Type) (reflect.Value, error) {
	return f(t)
}

// RegistryInstantiator uses the factories registered in a Registry and falls
// back to the zero value of t. Interface types without a factory cannot be
// instantiated.
type RegistryInstantiator struct {
	Registry *Registry
}

func (ri RegistryInstantiator) Instantiate(t reflect.Type) (reflect.Value, error) {
	if ri.Registry != nil {
		if factory, ok := ri.Registry.Factory(t); ok {
			return fromFactory(t, factory())
		}
	}
	if t.Kind() == reflect.Interface {
		return reflect.Value{}, newError(ErrInstantiation, t, "no factory registered for interface type")
	}
	return reflect.New(t).Elem(), nil
}

func fromFactory(t reflect.Type, v any) (reflect.Value, error) {
	if v == nil {
		return reflect.Value{}, newError(ErrInstantiation, t, "factory returned nil")
	}

	out := reflect.New(t).Elem()
	rv := reflect.ValueOf(v)
	switch {
	case rv.Type().AssignableTo(t):
		out.Set(rv)
	case rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Type().AssignableTo(t):
		out.Set(rv.Elem())
	default:
		return reflect.Value{}, newError(ErrInstantiation, t, fmt.Sprintf("factory returned %s", rv.Type()))
	}

	if t.Kind() == reflect.Interface && out.IsNil() {
		return reflect.Value{}, newError(ErrInstantiation, t, "factory returned a nil implementation")
	}
	return out, nil
}

// addressable returns v itself when it can be set, otherwise a settable copy.
func addressable(v reflect.Value) reflect.Value {
	if v.CanAddr() && v.CanSet() {
		return v
	}
	cp := reflect.New(v.Type()).Elem()
	cp.Set(v)
	return cp
}
