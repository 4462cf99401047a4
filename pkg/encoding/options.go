package encoding

import (
	"go.uber.org/zap"

	"github.com/zeusync/graphcodec/internal/observability/log"
)

type Option func(*Serializer)

// WithMaxDepth sets the deepest nesting level an Object may sit at. Negative
// values are treated as zero.
func WithMaxDepth(depth int) Option {
	return func(s *Serializer) {
		s.maxDepth = max(depth, 0)
	}
}

func WithMode(mode Mode) Option {
	return func(s *Serializer) {
		s.mode = mode
	}
}

func WithFailurePolicy(policy FailurePolicy) Option {
	return func(s *Serializer) {
		if policy != nil {
			s.policy = policy
			s.policySet = true
		}
	}
}

// WithInstantiator replaces the default RegistryInstantiator.
func WithInstantiator(inst Instantiator) Option {
	return func(s *Serializer) {
		if inst != nil {
			s.inst = inst
		}
	}
}

// WithRegistry shares a schema cache between Serializers.
func WithRegistry(registry *Registry) Option {
	return func(s *Serializer) {
		if registry != nil {
			s.registry = registry
		}
	}
}

// WithLogger routes call and fault logging to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Serializer) {
		if logger != nil {
			s.log = log.FromZap(logger)
		}
	}
}
