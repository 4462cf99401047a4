package encoding

import (
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type invoice struct {
	Number   int64
	Customer string `graph:"customer"`
	Lines    []invoiceLine
	Notes    string `graph:"-"`
	Total    float64
	internal int
}

type invoiceLine struct {
	SKU   string
	Count int32
	Owner *customer
}

type customer struct {
	Name string
}

func TestRegistry_SchemaOrderAndTags(t *testing.T) {
	r := NewRegistry()
	s, err := r.Schema(reflect.TypeOf(invoice{}))
	require.NoError(t, err)

	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"Lines", "Number", "Total", "customer"}, names)
	assert.Equal(t, []string{"Notes"}, s.Excluded)

	f, ok := s.Field("customer")
	require.True(t, ok)
	assert.Equal(t, "Customer", f.GoName)
	assert.Equal(t, KindString, f.Kind)

	_, ok = s.Field("internal")
	assert.False(t, ok)
	assert.Equal(t, "encoding.invoice{Lines:Array Number:Long Total:Double customer:String}", s.String())
}

func TestRegistry_SchemaIsCached(t *testing.T) {
	r := NewRegistry()
	first, err := r.Schema(reflect.TypeOf(&invoice{}))
	require.NoError(t, err)
	second, err := r.Schema(reflect.TypeOf(invoice{}))
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_ConcurrentDerivation(t *testing.T) {
	r := NewRegistry()
	typ := reflect.TypeOf(invoice{})

	var wg sync.WaitGroup
	schemas := make([]*Schema, 32)
	for i := range schemas {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := r.Schema(typ)
			assert.NoError(t, err)
			schemas[i] = s
		}(i)
	}
	wg.Wait()

	for _, s := range schemas {
		assert.Same(t, schemas[0], s)
	}
}

func TestRegistry_ExcludeAfterDerivation(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Exclude(invoice{}, "Total"))

	s, err := r.Schema(reflect.TypeOf(invoice{}))
	require.NoError(t, err)
	assert.Equal(t, []string{"Notes", "Total"}, s.Excluded)

	assert.ErrorIs(t, r.Exclude(&invoice{}, "Number"), ErrSchemaSealed)
	assert.ErrorIs(t, r.ExcludeByName("encoding.invoice", "Number"), ErrSchemaSealed)
	assert.ErrorIs(t, r.Exclude(42, "x"), ErrInvalidConfig)
}

func TestRegistry_ExcludeDuringDerivation(t *testing.T) {
	r := NewRegistry()
	typ := reflect.TypeOf(invoice{})

	r.mu.Lock()
	r.deriving[typ] = struct{}{}
	r.mu.Unlock()

	assert.ErrorIs(t, r.Exclude(invoice{}, "Total"), ErrSchemaSealed)
	assert.ErrorIs(t, r.ExcludeByName("encoding.invoice", "Total"), ErrSchemaSealed)

	r.mu.Lock()
	delete(r.deriving, typ)
	r.mu.Unlock()

	require.NoError(t, r.Exclude(invoice{}, "Total"))
	s, err := r.Schema(typ)
	require.NoError(t, err)
	assert.Contains(t, s.Excluded, "Total")
}

func TestRegistry_AcceptedExclusionsAreNeverLost(t *testing.T) {
	for round := 0; round < 50; round++ {
		r := NewRegistry()
		typ := reflect.TypeOf(invoice{})

		var (
			wg       sync.WaitGroup
			accepted bool
			schema   *Schema
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			accepted = r.Exclude(invoice{}, "Total") == nil
		}()
		go func() {
			defer wg.Done()
			schema, _ = r.Schema(typ)
		}()
		wg.Wait()

		require.NotNil(t, schema)
		_, included := schema.Field("Total")
		if accepted {
			assert.False(t, included, "round %d: accepted exclusion missing from schema", round)
		}
	}
}

func TestRegistry_ExcludeByWireName(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.ExcludeByName("encoding.invoice", "customer"))

	s, err := r.Schema(reflect.TypeOf(invoice{}))
	require.NoError(t, err)
	_, ok := s.Field("customer")
	assert.False(t, ok)
}

func TestRegistry_Fingerprint(t *testing.T) {
	type a struct {
		X int32
		Y string
	}
	type b struct {
		Y string
		X int32
	}
	type c struct {
		X int64
		Y string
	}

	r := NewRegistry()
	sa, err := r.Schema(reflect.TypeOf(a{}))
	require.NoError(t, err)
	sb, err := r.Schema(reflect.TypeOf(b{}))
	require.NoError(t, err)
	sc, err := r.Schema(reflect.TypeOf(c{}))
	require.NoError(t, err)

	assert.Equal(t, sa.Fingerprint(), sb.Fingerprint())
	assert.NotEqual(t, sa.Fingerprint(), sc.Fingerprint())
}

func TestRegistry_DuplicateWireNames(t *testing.T) {
	type clash struct {
		A string `graph:"name"`
		B string `graph:"name"`
	}
	_, err := NewRegistry().Schema(reflect.TypeOf(clash{}))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestRegistry_Preload(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Preload(invoice{}, (*customer)(nil), 42))

	assert.Equal(t, 3, r.Len())
	require.ErrorIs(t, r.Exclude(customer{}, "Name"), ErrSchemaSealed)
	require.ErrorIs(t, r.Exclude(invoiceLine{}, "SKU"), ErrSchemaSealed)
}

func TestRegistry_SetFactory(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.SetFactory(nil, func() any { return nil }), ErrInvalidConfig)
	assert.ErrorIs(t, r.SetFactory(customer{}, nil), ErrInvalidConfig)

	require.NoError(t, r.SetFactory(&customer{}, func() any { return customer{Name: "default"} }))
	v, err := RegistryInstantiator{Registry: r}.Instantiate(reflect.TypeOf(customer{}))
	require.NoError(t, err)
	assert.Equal(t, customer{Name: "default"}, v.Interface())

	require.NoError(t, r.SetFactory((*shape)(nil), func() any { return 42 }))
	_, err = RegistryInstantiator{Registry: r}.Instantiate(reflect.TypeOf((*shape)(nil)).Elem())
	assert.ErrorIs(t, err, ErrInstantiation)
}

func TestSerializer_FactoryDefaultsSurviveRead(t *testing.T) {
	type settings struct {
		Theme string
		Size  int32
	}
	s := New()
	require.NoError(t, s.Registry().SetFactory(settings{}, func() any { return &settings{Theme: "dark"} }))

	data, err := s.Write(settings{Theme: "light", Size: 3})
	require.NoError(t, err)
	got, err := ReadAs[settings](s, data)
	require.NoError(t, err)
	assert.Equal(t, settings{Theme: "light", Size: 3}, got)
}
