package encoding

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Containers never reserve room for more elements than this up front; larger
// ones grow as elements are actually decoded.
const preallocLimit = 1024

// maxHollowElems bounds the count of a container whose elements occupy no
// bytes in the stream, unless the elements themselves have no size.
const maxHollowElems = 1 << 20

// maxNesting bounds pointer and container nesting on the write path, which the
// depth limit does not count.
const maxNesting = 10000

var errRangeOverrun = errors.New("collection yielded more elements than Len reported")

// traversal is the per-call state of one Write or Read.
type traversal struct {
	s      *Serializer
	op     string
	callID string
	path   []string
	active map[activeKey]struct{}

	faults    int
	exhausted bool
	nesting   int
}

// activeKey identifies a pointer, or the backing array of a container, on the
// current write path. Slices sharing an array but differing in length are
// distinct values.
type activeKey struct {
	ptr uintptr
	typ reflect.Type
	n   int
}

// identifier is implemented by collections that can name their storage.
type identifier interface {
	identity() (uintptr, int)
}

func (s *Serializer) newTraversal(op string) *traversal {
	return &traversal{s: s, op: op}
}

func (t *traversal) id() string {
	if t.callID == "" {
		t.callID = uuid.NewString()
	}
	return t.callID
}

// fail reports a fault to the failure policy exactly once, where it happened.
// A nil result means the fault was swallowed and the traversal goes on; any
// other result is returned unchanged by every caller up the stack.
func (t *traversal) fail(err error, typ reflect.Type) error {
	cp := *asError(err, ErrMalformedStream)
	e := &cp
	e.Op = t.op
	e.Path = t.pathString()
	e.CallID = t.id()
	if e.Type == nil {
		e.Type = typ
	}

	t.faults++
	if errors.Is(e, ErrTruncatedStream) {
		t.exhausted = true
	}

	decision := t.s.policy.OnFailure(e)
	if IsTerminal(e) {
		if decision != nil {
			return decision
		}
		return e
	}
	return decision
}

// enter marks key as being written. Revisiting a key before leave, or nesting
// deeper than maxNesting, is a recursion fault. A zero ptr only counts towards
// the nesting.
func (t *traversal) enter(key activeKey) error {
	if _, cycle := t.active[key]; cycle && key.ptr != 0 {
		return t.fail(newError(ErrRecursionLimit, key.typ, "reference cycle"), key.typ)
	}
	if t.nesting >= maxNesting {
		return t.fail(newError(ErrRecursionLimit, key.typ,
			fmt.Sprintf("nesting exceeds %d levels", maxNesting)), key.typ)
	}
	if key.ptr != 0 {
		if t.active == nil {
			t.active = make(map[activeKey]struct{})
		}
		t.active[key] = struct{}{}
	}
	t.nesting++
	return nil
}

func (t *traversal) leave(key activeKey) {
	if key.ptr != 0 {
		delete(t.active, key)
	}
	t.nesting--
}

func (t *traversal) push(segment string) {
	t.path = append(t.path, segment)
}

func (t *traversal) pushIndex(i int) {
	t.path = append(t.path, "["+strconv.Itoa(i)+"]")
}

func (t *traversal) pop() {
	t.path = t.path[:len(t.path)-1]
}

func (t *traversal) pathString() string {
	var b strings.Builder
	for _, seg := range t.path {
		if b.Len() > 0 && !strings.HasPrefix(seg, "[") {
			b.WriteByte('.')
		}
		b.WriteString(seg)
	}
	return b.String()
}

func (t *traversal) write(w *Writer, v reflect.Value, depth int, nested bool) error {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return t.fail(unsupported(v.Type(), "nil interface value"), nil)
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return t.fail(unsupported(nil, "nil value"), nil)
	}

	typ := v.Type()
	kind, err := ClassifyType(typ)
	if err != nil {
		return t.fail(err, typ)
	}
	if typ.Kind() == reflect.Pointer {
		return t.writePointer(w, v, depth, nested)
	}

	switch {
	case kind.IsScalar():
		return t.writeScalar(w, v, kind)
	case kind == KindArray:
		return t.writeArray(w, v, depth)
	case kind == KindCollection:
		return t.writeCollection(w, v, depth)
	default:
		return t.writeObject(w, v, depth)
	}
}

// writePointer writes a presence flag before nested pointees. Top-level
// pointers are followed without one and must not be nil.
func (t *traversal) writePointer(w *Writer, v reflect.Value, depth int, nested bool) error {
	typ := v.Type()
	if nested {
		if err := w.WriteBool(!v.IsNil()); err != nil {
			return t.fail(err, typ)
		}
		if v.IsNil() {
			return nil
		}
	} else if v.IsNil() {
		return t.fail(unsupported(typ, "nil pointer"), typ)
	}

	key := activeKey{ptr: v.Pointer(), typ: typ}
	if err := t.enter(key); err != nil {
		return err
	}
	defer t.leave(key)

	return t.write(w, v.Elem(), depth, nested)
}

func (t *traversal) writeScalar(w *Writer, v reflect.Value, kind Kind) error {
	var err error
	switch kind {
	case KindBoolean:
		err = w.WriteBool(v.Bool())
	case KindByte:
		err = w.WriteInt8(int8(intBits(v)))
	case KindChar:
		err = w.WriteChar(Char(v.Uint()))
	case KindShort:
		err = w.WriteInt16(int16(intBits(v)))
	case KindInteger:
		err = w.WriteInt32(int32(intBits(v)))
	case KindLong:
		err = w.WriteInt64(intBits(v))
	case KindFloat:
		err = w.WriteFloat32(float32(v.Float()))
	case KindDouble:
		err = w.WriteFloat64(v.Float())
	case KindString:
		err = w.WriteString(v.String())
	}
	if err != nil {
		return t.fail(err, v.Type())
	}
	return nil
}

func (t *traversal) writeArray(w *Writer, v reflect.Value, depth int) error {
	n := v.Len()
	if v.Kind() == reflect.Slice && n > 0 {
		key := activeKey{ptr: v.Pointer(), typ: v.Type(), n: n}
		if err := t.enter(key); err != nil {
			return err
		}
		defer t.leave(key)
	}

	if err := w.WriteCount(n); err != nil {
		return t.fail(err, v.Type())
	}
	for i := 0; i < n; i++ {
		t.pushIndex(i)
		err := t.write(w, v.Index(i), depth, true)
		t.pop()
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *traversal) writeCollection(w *Writer, v reflect.Value, depth int) error {
	typ := v.Type()
	c, ok := addressable(v).Addr().Interface().(Collection)
	if !ok {
		return t.fail(unsupported(typ, "does not implement Collection"), typ)
	}

	n := c.Len()
	key := activeKey{typ: typ, n: n}
	switch {
	case v.Kind() == reflect.Slice && n > 0:
		key.ptr = v.Pointer()
	case n > 0:
		if id, ok := c.(identifier); ok {
			key.ptr, key.n = id.identity()
		}
	}
	if err := t.enter(key); err != nil {
		return err
	}
	defer t.leave(key)

	if err := w.WriteCount(n); err != nil {
		return t.fail(err, typ)
	}

	i := 0
	err := c.Range(func(elem any) error {
		if i >= n {
			return errRangeOverrun
		}
		t.pushIndex(i)
		defer t.pop()
		i++
		return t.write(w, reflect.ValueOf(elem), depth, true)
	})
	switch {
	case errors.Is(err, errRangeOverrun):
		return t.fail(unsupported(typ, fmt.Sprintf("Range yielded more than %d elements", n)), typ)
	case err != nil:
		return err
	case i != n:
		return t.fail(unsupported(typ, fmt.Sprintf("Range yielded %d of %d elements", i, n)), typ)
	}
	return nil
}

func (t *traversal) writeObject(w *Writer, v reflect.Value, depth int) error {
	typ := v.Type()
	if depth > t.s.maxDepth {
		return t.fail(newError(ErrRecursionLimit, typ,
			fmt.Sprintf("depth %d exceeds the maximum of %d", depth, t.s.maxDepth)), typ)
	}

	if m, ok := addressable(v).Addr().Interface().(Marshaler); ok {
		if err := m.MarshalGraph(w); err != nil {
			return t.fail(asError(err, ErrUnsupportedType), typ)
		}
		return nil
	}

	schema, err := t.s.registry.Schema(typ)
	if err != nil {
		return t.fail(err, typ)
	}
	for i := range schema.Fields {
		f := &schema.Fields[i]
		t.push(f.Name)
		err := t.writeField(w, v, f, depth)
		t.pop()
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *traversal) writeField(w *Writer, v reflect.Value, f *FieldDescriptor, depth int) error {
	if f.kindErr != nil {
		return t.fail(f.kindErr, f.Type)
	}
	if f.Kind == KindObject {
		depth++
	}
	return t.write(w, v.Field(f.index), depth, true)
}

// read decodes into dst, which must be settable. A swallowed fault leaves dst
// at its zero value.
func (t *traversal) read(r *Reader, dst reflect.Value, depth int, nested bool) error {
	typ := dst.Type()
	kind, err := ClassifyType(typ)
	if err != nil {
		return t.fail(err, typ)
	}

	switch typ.Kind() {
	case reflect.Pointer:
		return t.readPointer(r, dst, depth, nested)
	case reflect.Interface:
		return t.readInterface(r, dst, depth, nested)
	}

	switch {
	case kind.IsScalar():
		return t.readScalar(r, dst, kind)
	case kind == KindArray:
		return t.readArray(r, dst, depth)
	case kind == KindCollection:
		return t.readCollection(r, dst, depth)
	default:
		return t.readObject(r, dst, depth)
	}
}

func (t *traversal) readPointer(r *Reader, dst reflect.Value, depth int, nested bool) error {
	typ := dst.Type()
	if nested {
		present, err := r.ReadBool()
		if err != nil {
			return t.fail(err, typ)
		}
		if !present {
			dst.SetZero()
			return nil
		}
	}

	elem := reflect.New(typ.Elem())
	if err := t.read(r, elem.Elem(), depth, nested); err != nil {
		return err
	}
	dst.Set(elem)
	return nil
}

// readInterface asks the Instantiator for a concrete value and decodes into it
// as if the concrete type had been declared.
func (t *traversal) readInterface(r *Reader, dst reflect.Value, depth int, nested bool) error {
	typ := dst.Type()
	inst, err := t.s.inst.Instantiate(typ)
	if err != nil {
		return t.fail(asError(err, ErrInstantiation), typ)
	}
	if inst.IsValid() && inst.Type() != typ && inst.Type().Implements(typ) {
		boxed := reflect.New(typ).Elem()
		boxed.Set(inst)
		inst = boxed
	}
	if !inst.IsValid() || inst.Type() != typ || inst.IsNil() {
		return t.fail(newError(ErrInstantiation, typ, "instantiator returned no implementation"), typ)
	}

	concrete := inst.Elem()
	holder := reflect.New(concrete.Type()).Elem()
	holder.Set(concrete)
	if err := t.read(r, holder, depth, nested); err != nil {
		return err
	}
	dst.Set(holder)
	return nil
}

func (t *traversal) readScalar(r *Reader, dst reflect.Value, kind Kind) error {
	var err error
	switch kind {
	case KindBoolean:
		var v bool
		if v, err = r.ReadBool(); err == nil {
			dst.SetBool(v)
		}
	case KindByte:
		var v int8
		if v, err = r.ReadInt8(); err == nil {
			setIntBits(dst, int64(v), 8)
		}
	case KindChar:
		var v Char
		if v, err = r.ReadChar(); err == nil {
			dst.SetUint(uint64(v))
		}
	case KindShort:
		var v int16
		if v, err = r.ReadInt16(); err == nil {
			setIntBits(dst, int64(v), 16)
		}
	case KindInteger:
		var v int32
		if v, err = r.ReadInt32(); err == nil {
			setIntBits(dst, int64(v), 32)
		}
	case KindLong:
		var v int64
		if v, err = r.ReadInt64(); err == nil {
			err = setLong(dst, v)
		}
	case KindFloat:
		var v float32
		if v, err = r.ReadFloat32(); err == nil {
			dst.SetFloat(float64(v))
		}
	case KindDouble:
		var v float64
		if v, err = r.ReadFloat64(); err == nil {
			dst.SetFloat(v)
		}
	case KindString:
		var v string
		if v, err = r.ReadString(); err == nil {
			dst.SetString(v)
		}
	}
	if err != nil {
		return t.fail(err, dst.Type())
	}
	return nil
}

func (t *traversal) readArray(r *Reader, dst reflect.Value, depth int) error {
	typ := dst.Type()
	n, err := r.ReadCount()
	if err != nil {
		return t.fail(err, typ)
	}

	if typ.Kind() == reflect.Array {
		if n != typ.Len() {
			return t.fail(malformed(typ, fmt.Sprintf("stream holds %d elements for an array of %d", n, typ.Len())), typ)
		}
		for i := 0; i < n; i++ {
			t.pushIndex(i)
			err := t.read(r, dst.Index(i), depth, true)
			t.pop()
			if err != nil {
				return err
			}
			if t.exhausted {
				break
			}
		}
		return nil
	}

	out := reflect.MakeSlice(typ, 0, min(n, preallocLimit))
	for i := 0; i < n; i++ {
		before := r.Consumed()
		elem := reflect.New(typ.Elem()).Elem()
		t.pushIndex(i)
		err := t.read(r, elem, depth, true)
		t.pop()
		if err != nil {
			return err
		}
		if t.exhausted {
			break
		}
		if i == 0 && n > 1 && r.Consumed() == before && repeatable(typ.Elem()) {
			return t.fillHollow(dst, elem, n)
		}
		out = reflect.Append(out, elem)
	}
	dst.Set(out)
	return nil
}

// fillHollow sets dst to n copies of first, an element that was decoded without
// consuming any bytes. Every further element would decode the same way.
func (t *traversal) fillHollow(dst, first reflect.Value, n int) error {
	typ := dst.Type()
	if typ.Elem().Size() > 0 && n > maxHollowElems {
		return t.fail(malformed(typ, fmt.Sprintf("count %d for elements that occupy no bytes", n)), typ)
	}

	out := reflect.MakeSlice(typ, n, n)
	if !first.IsZero() {
		out.Index(0).Set(first)
		for filled := 1; filled < n; filled *= 2 {
			reflect.Copy(out.Slice(filled, n), out.Slice(0, filled))
		}
	}
	dst.Set(out)
	return nil
}

// repeatable reports whether every value of t decodes from the stream the same
// way, so that one element that consumed nothing stands for all of them.
func repeatable(t reflect.Type) bool {
	return t.Kind() != reflect.Interface && !hasGraphMethods(t)
}

func (t *traversal) readCollection(r *Reader, dst reflect.Value, depth int) error {
	typ := dst.Type()
	n, err := r.ReadCount()
	if err != nil {
		return t.fail(err, typ)
	}

	inst, err := t.s.inst.Instantiate(typ)
	if err != nil {
		return t.fail(asError(err, ErrInstantiation), typ)
	}
	inst = addressable(inst)
	b, ok := inst.Addr().Interface().(CollectionBuilder)
	if !ok {
		return t.fail(unsupported(typ, "does not implement CollectionBuilder"), typ)
	}

	b.Reset(min(n, preallocLimit))
	elemType := b.ElemType()
	for i := 0; i < n; i++ {
		before := r.Consumed()
		elem := reflect.New(elemType).Elem()
		t.pushIndex(i)
		err := t.read(r, elem, depth, true)
		if err == nil && i == 0 && n > maxHollowElems && r.Consumed() == before && repeatable(elemType) {
			err = t.fail(malformed(typ, fmt.Sprintf("count %d for elements that occupy no bytes", n)), typ)
			if err == nil {
				t.pop()
				return nil
			}
		}
		if err == nil && !t.exhausted {
			if addErr := b.Add(elem.Interface()); addErr != nil {
				err = t.fail(malformed(typ, addErr.Error()), typ)
			}
		}
		t.pop()
		if err != nil {
			return err
		}
		if t.exhausted {
			break
		}
	}
	dst.Set(inst)
	return nil
}

func (t *traversal) readObject(r *Reader, dst reflect.Value, depth int) error {
	typ := dst.Type()
	if depth > t.s.maxDepth {
		return t.fail(newError(ErrRecursionLimit, typ,
			fmt.Sprintf("depth %d exceeds the maximum of %d", depth, t.s.maxDepth)), typ)
	}

	inst, err := t.s.inst.Instantiate(typ)
	if err != nil {
		return t.fail(asError(err, ErrInstantiation), typ)
	}
	if !inst.IsValid() || inst.Type() != typ {
		return t.fail(newError(ErrInstantiation, typ, "instantiator returned a value of another type"), typ)
	}
	inst = addressable(inst)

	if u, ok := inst.Addr().Interface().(Unmarshaler); ok {
		if err := u.UnmarshalGraph(r); err != nil {
			return t.fail(asError(err, ErrMalformedStream), typ)
		}
		dst.Set(inst)
		return nil
	}

	schema, err := t.s.registry.Schema(typ)
	if err != nil {
		return t.fail(err, typ)
	}
	for i := range schema.Fields {
		f := &schema.Fields[i]
		t.push(f.Name)
		err := t.readField(r, inst, f, depth)
		t.pop()
		if err != nil {
			return err
		}
	}
	dst.Set(inst)
	return nil
}

func (t *traversal) readField(r *Reader, v reflect.Value, f *FieldDescriptor, depth int) error {
	if f.kindErr != nil {
		return t.fail(f.kindErr, f.Type)
	}
	if f.Kind == KindObject {
		depth++
	}
	return t.read(r, v.Field(f.index), depth, true)
}

func intBits(v reflect.Value) int64 {
	if v.CanInt() {
		return v.Int()
	}
	return int64(v.Uint())
}

// setIntBits stores the low bits of x into an integer of either signedness.
func setIntBits(dst reflect.Value, x int64, bits uint) {
	if dst.CanInt() {
		dst.SetInt(x)
		return
	}
	dst.SetUint(uint64(x) & (1<<bits - 1))
}

func setLong(dst reflect.Value, x int64) error {
	if dst.CanInt() {
		if dst.OverflowInt(x) {
			return malformed(dst.Type(), fmt.Sprintf("value %d overflows", x))
		}
		dst.SetInt(x)
		return nil
	}
	u := uint64(x)
	if dst.OverflowUint(u) {
		return malformed(dst.Type(), fmt.Sprintf("value %d overflows", u))
	}
	dst.SetUint(u)
	return nil
}
