package encoding

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/zeusync/graphcodec/internal/observability/log"
)

// FailurePolicy decides what happens to a fault. Returning nil swallows it:
// the value that failed is skipped on write, or left at its zero value on read,
// and the traversal continues. Returning an error aborts the call with it.
//
// Each fault is passed to the policy once, where it happens. Recursion limit
// faults abort the call whatever the policy returns.
type FailurePolicy interface {
	OnFailure(err error) error
}

type FailurePolicyFunc func(err error) error

func (f FailurePolicyFunc) OnFailure(err error) error {
	return f(err)
}

var (
	// Rethrow aborts on the first fault. It is the default.
	Rethrow FailurePolicy = FailurePolicyFunc(func(err error) error { return err })
	// Ignore swallows every fault silently.
	Ignore FailurePolicy = FailurePolicyFunc(func(error) error { return nil })
)

// Policy names accepted in Config.FailurePolicy.
const (
	PolicyRethrow = "rethrow"
	PolicyIgnore  = "ignore"
	PolicyLog     = "log"
)

// LogAndContinue swallows faults after logging them at warn level.
func LogAndContinue(logger *zap.Logger) FailurePolicy {
	if logger == nil {
		return logPolicy{log: log.Nop()}
	}
	return logPolicy{log: log.FromZap(logger)}
}

type logPolicy struct {
	log log.Log
}

func (p logPolicy) OnFailure(err error) error {
	fields := []log.Field{log.Error(err)}
	var e *Error
	if errors.As(err, &e) {
		fields = append(fields, log.String("op", e.Op), log.String("path", e.Path))
		if e.CallID != "" {
			fields = append(fields, log.String("call_id", e.CallID))
		}
	}
	p.log.Warn("graph fault skipped", fields...)
	return nil
}

// policyByName resolves a configured policy name. The logger is only used by
// the "log" policy.
func policyByName(name string, logger log.Log) (FailurePolicy, error) {
	switch strings.ToLower(name) {
	case "", PolicyRethrow:
		return Rethrow, nil
	case PolicyIgnore:
		return Ignore, nil
	case PolicyLog:
		if logger == nil {
			logger = log.Nop()
		}
		return logPolicy{log: logger}, nil
	default:
		return nil, fmt.Errorf("%w: unknown failure policy %q", ErrInvalidConfig, name)
	}
}
