package encoding

import (
	"fmt"
	"reflect"
	"runtime"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/zeusync/graphcodec/internal/observability/log"
	"github.com/zeusync/graphcodec/pkg/concurrent"
)

// Registry caches derived schemas and holds per-type configuration: field
// exclusions and factories. Schemas are derived once per type on first use and
// are immutable afterwards. A Registry is safe for concurrent use and may be
// shared by several Serializers.
type Registry struct {
	mu         sync.RWMutex
	schemas    map[reflect.Type]*Schema
	exclusions map[reflect.Type]map[string]struct{}
	named      map[string]map[string]struct{}
	factories  map[reflect.Type]func() any
	deriving   map[reflect.Type]struct{}

	group singleflight.Group
	log   log.Log
}

func NewRegistry() *Registry {
	return &Registry{
		schemas:    make(map[reflect.Type]*Schema),
		exclusions: make(map[reflect.Type]map[string]struct{}),
		named:      make(map[string]map[string]struct{}),
		factories:  make(map[reflect.Type]func() any),
		deriving:   make(map[reflect.Type]struct{}),
		log:        log.Nop(),
	}
}

// Exclude leaves the named fields of sample's type out of its schema. Names may
// be Go field names or wire names. It fails with ErrSchemaSealed once the
// schema has been derived or while it is being derived.
func (r *Registry) Exclude(sample any, fields ...string) error {
	t := typeOf(sample)
	if t == nil || t.Kind() != reflect.Struct {
		return fmt.Errorf("%w: exclusions apply to struct types, got %v", ErrInvalidConfig, t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed(t) {
		return fmt.Errorf("%w: %s", ErrSchemaSealed, t)
	}
	r.exclusions[t] = addNames(r.exclusions[t], fields)
	return nil
}

// ExcludeByName is Exclude keyed by the type's String form, e.g.
// "billing.Invoice". It is used by configuration files.
func (r *Registry) ExcludeByName(typeName string, fields ...string) error {
	if typeName == "" {
		return fmt.Errorf("%w: empty type name in exclusions", ErrInvalidConfig)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for t := range r.schemas {
		if t.String() == typeName {
			return fmt.Errorf("%w: %s", ErrSchemaSealed, typeName)
		}
	}
	for t := range r.deriving {
		if t.String() == typeName {
			return fmt.Errorf("%w: %s", ErrSchemaSealed, typeName)
		}
	}
	r.named[typeName] = addNames(r.named[typeName], fields)
	return nil
}

// SetFactory registers the constructor used when a value of sample's type must
// be created during reading. It is required for interface types: pass a typed
// nil pointer such as (*Shape)(nil). The factory may return either a T or a *T.
func (r *Registry) SetFactory(sample any, factory func() any) error {
	t := typeOf(sample)
	if t == nil {
		return fmt.Errorf("%w: factory needs a typed sample", ErrInvalidConfig)
	}
	if factory == nil {
		return fmt.Errorf("%w: nil factory for %s", ErrInvalidConfig, t)
	}

	r.mu.Lock()
	r.factories[t] = factory
	r.mu.Unlock()
	return nil
}

// Factory returns the constructor registered for t, if any.
func (r *Registry) Factory(t reflect.Type) (func() any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[t]
	return f, ok
}

// Schema returns the schema of struct type t, deriving and caching it on first
// use. Concurrent first uses of the same type derive it once.
func (r *Registry) Schema(t reflect.Type) (*Schema, error) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return nil, unsupported(nil, "nil type")
	}

	r.mu.RLock()
	s, ok := r.schemas[t]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	v, err, _ := r.group.Do(typeKey(t), func() (any, error) {
		r.mu.Lock()
		if s, ok := r.schemas[t]; ok {
			r.mu.Unlock()
			return s, nil
		}
		exclude, logger := r.exclusionsFor(t), r.log
		r.deriving[t] = struct{}{}
		r.mu.Unlock()

		s, err := deriveSchema(t, exclude)

		r.mu.Lock()
		delete(r.deriving, t)
		if err != nil {
			r.mu.Unlock()
			return nil, err
		}
		if existing, ok := r.schemas[t]; ok {
			s = existing
		} else {
			r.schemas[t] = s
		}
		r.mu.Unlock()

		logger.Debug("schema derived",
			log.Stringer("type", t),
			log.Int("fields", len(s.Fields)),
			log.Int("excluded", len(s.Excluded)),
			log.Uint64("fingerprint", s.fingerprint),
		)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Schema), nil
}

// Preload derives the schemas of the samples' types concurrently. Struct types
// reachable through fields, pointers and element types are derived as well.
func (r *Registry) Preload(samples ...any) error {
	roots := make([]reflect.Type, 0, len(samples))
	for _, sample := range samples {
		if t := typeOf(sample); t != nil {
			roots = append(roots, t)
		}
	}

	seen := make(map[reflect.Type]struct{})
	var structs []reflect.Type
	for _, t := range roots {
		structs = collectStructs(t, seen, structs)
	}

	return concurrent.ForEach(structs, runtime.GOMAXPROCS(0), func(t reflect.Type) error {
		_, err := r.Schema(t)
		return err
	})
}

// Len returns the number of cached schemas.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.schemas)
}

// adoptLogger gives the registry l unless it already logs somewhere.
func (r *Registry) adoptLogger(l log.Log) {
	r.mu.Lock()
	if r.log == log.Log(log.Nop()) {
		r.log = l
	}
	r.mu.Unlock()
}

// sealed must be called with r.mu held.
func (r *Registry) sealed(t reflect.Type) bool {
	_, derived := r.schemas[t]
	_, inFlight := r.deriving[t]
	return derived || inFlight
}

// exclusionsFor must be called with r.mu held.
func (r *Registry) exclusionsFor(t reflect.Type) map[string]struct{} {
	byType, byName := r.exclusions[t], r.named[t.String()]
	if len(byType) == 0 && len(byName) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(byType)+len(byName))
	for name := range byType {
		out[name] = struct{}{}
	}
	for name := range byName {
		out[name] = struct{}{}
	}
	return out
}

// collectStructs walks the static type graph rooted at t and appends every
// struct type that would get a schema.
func collectStructs(t reflect.Type, seen map[reflect.Type]struct{}, out []reflect.Type) []reflect.Type {
	if _, ok := seen[t]; ok {
		return out
	}
	seen[t] = struct{}{}

	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Array:
		return collectStructs(t.Elem(), seen, out)
	case reflect.Struct:
		kind, err := ClassifyType(t)
		if err != nil || kind != KindObject || hasGraphMethods(t) {
			return out
		}
		out = append(out, t)
		for i := 0; i < t.NumField(); i++ {
			if f := t.Field(i); f.IsExported() {
				out = collectStructs(f.Type, seen, out)
			}
		}
	}
	return out
}

func addNames(set map[string]struct{}, names []string) map[string]struct{} {
	if set == nil {
		set = make(map[string]struct{}, len(names))
	}
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

// typeOf resolves a sample to the type it stands for. Pointers are stripped so
// that T{}, &T{} and (*T)(nil) name the same type; a reflect.Type is used as is.
func typeOf(sample any) reflect.Type {
	t, ok := sample.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(sample)
	}
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

func typeKey(t reflect.Type) string {
	return fmt.Sprintf("%s@%p", t, t)
}
