package encoding

import (
	"bytes"
	"io"
	"reflect"
	"runtime"
	"time"

	"github.com/zeusync/graphcodec/internal/observability/log"
	"github.com/zeusync/graphcodec/pkg/concurrent"
	"github.com/zeusync/graphcodec/pkg/generic"
)

// Buffers that grew beyond this are not returned to the pool.
const maxPooledBuffer = 64 << 10

// Serializer converts object graphs to and from the wire format. Its settings
// are fixed at construction, so one Serializer may be used by many goroutines;
// each call keeps its own traversal state.
type Serializer struct {
	maxDepth int
	mode     Mode
	policy   FailurePolicy
	inst     Instantiator
	log      log.Log

	policySet bool

	registry *Registry

	buffers *generic.Pool[*bytes.Buffer]
	metrics metrics
}

// New returns a Serializer with a maximum depth of 15, untagged mode and the
// Rethrow policy unless overridden by opts.
func New(opts ...Option) *Serializer {
	s := &Serializer{
		maxDepth: DefaultMaxDepth,
		mode:     Untagged,
		policy:   Rethrow,
		log:      log.Nop(),
		buffers: generic.NewResettablePool(
			func() *bytes.Buffer { return new(bytes.Buffer) },
			func(b *bytes.Buffer) { b.Reset() },
			func(b *bytes.Buffer) bool { return b.Cap() <= maxPooledBuffer },
		),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.registry == nil {
		s.registry = NewRegistry()
	}
	s.registry.adoptLogger(s.log)
	if s.inst == nil {
		s.inst = RegistryInstantiator{Registry: s.registry}
	}
	return s
}

// NewFromConfig builds a Serializer from cfg. Options are applied after the
// configuration and win over it. When no logger is supplied and cfg sets a log
// level, logs go to stderr as JSON.
func NewFromConfig(cfg Config, opts ...Option) (*Serializer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := New(append([]Option{WithMaxDepth(cfg.MaxDepth), WithMode(cfg.Mode)}, opts...)...)

	if cfg.LogLevel != "" {
		level, _ := log.ParseLevel(cfg.LogLevel)
		if s.log == log.Log(log.Nop()) {
			s.log = log.New(level)
			s.registry.adoptLogger(s.log)
		} else {
			s.log.SetLevel(level)
		}
	}

	if !s.policySet {
		policy, err := policyByName(cfg.FailurePolicy, s.log)
		if err != nil {
			return nil, err
		}
		s.policy = policy
	}

	for typeName, fields := range cfg.Exclude {
		if err := s.registry.ExcludeByName(typeName, fields...); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Serializer) MaxDepth() int {
	return s.maxDepth
}

func (s *Serializer) Mode() Mode {
	return s.mode
}

func (s *Serializer) Registry() *Registry {
	return s.registry
}

// Metrics returns a snapshot of the call statistics.
func (s *Serializer) Metrics() Metrics {
	return s.metrics.snapshot()
}

// Write encodes v into a new byte slice. Top-level pointers are followed; a nil
// value cannot be written.
func (s *Serializer) Write(v any) ([]byte, error) {
	buf := s.buffers.Get()
	defer s.buffers.Put(buf)

	if err := s.Encode(buf, v); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}

// Encode writes v to w. The stream is flushed, not closed, before returning.
func (s *Serializer) Encode(w io.Writer, v any) (err error) {
	start := time.Now()
	t := s.newTraversal(OpWrite)
	sw := NewWriter(w, s.mode)

	defer func() {
		if ferr := sw.Flush(); ferr != nil && err == nil {
			err = t.fail(ferr, nil)
		}
		s.finish(t, sw.Written(), start, err)
	}()

	if v == nil {
		return t.fail(unsupported(nil, "nil value"), nil)
	}
	return t.write(sw, reflect.ValueOf(v), 0, false)
}

// Read decodes a value of type typ from data. Bytes after the value are
// ignored.
func (s *Serializer) Read(data []byte, typ reflect.Type) (any, error) {
	return s.Decode(bytes.NewReader(data), typ)
}

// Decode reads one value of type typ from r. The stream is not closed and
// nothing beyond the value is consumed.
func (s *Serializer) Decode(r io.Reader, typ reflect.Type) (any, error) {
	if typ == nil {
		return nil, &Error{Op: OpRead, Err: ErrUnsupportedType, Detail: "nil type"}
	}
	dst := reflect.New(typ).Elem()
	if err := s.decodeInto(r, dst); err != nil {
		return nil, err
	}
	return dst.Interface(), nil
}

// ReadInto decodes data into the value ptr points to.
func (s *Serializer) ReadInto(data []byte, ptr any) error {
	return s.DecodeInto(bytes.NewReader(data), ptr)
}

// DecodeInto reads one value from r into the value ptr points to.
func (s *Serializer) DecodeInto(r io.Reader, ptr any) error {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return &Error{Op: OpRead, Err: ErrUnsupportedType, Type: reflect.TypeOf(ptr), Detail: "destination must be a non-nil pointer"}
	}
	return s.decodeInto(r, rv.Elem())
}

func (s *Serializer) decodeInto(r io.Reader, dst reflect.Value) (err error) {
	start := time.Now()
	t := s.newTraversal(OpRead)
	sr := NewReader(r, s.mode)
	defer func() {
		s.finish(t, sr.Consumed(), start, err)
	}()
	return t.read(sr, dst, 0, false)
}

// WriteAll encodes values concurrently, preserving order. It fails with the
// first error returned by any call.
func (s *Serializer) WriteAll(values ...any) ([][]byte, error) {
	return concurrent.Map(values, runtime.GOMAXPROCS(0), func(_ int, v any) ([]byte, error) {
		return s.Write(v)
	})
}

// ReadAs decodes data as a T.
func ReadAs[T any](s *Serializer, data []byte) (T, error) {
	var out T
	err := s.ReadInto(data, &out)
	return out, err
}

func (s *Serializer) finish(t *traversal, n int64, start time.Time, err error) {
	elapsed := time.Since(start)
	s.metrics.record(t.op, n, t.faults, elapsed, err)

	if !s.log.Enabled(log.LevelDebug) {
		return
	}
	fields := []log.Field{
		log.String("call_id", t.id()),
		log.String("op", t.op),
		log.Int64("bytes", n),
		log.Int("faults", t.faults),
		log.Duration("elapsed", elapsed),
	}
	if err != nil {
		fields = append(fields, log.Error(err))
	}
	s.log.Debug("graph call finished", fields...)
}
