package runtime

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/bridgegen/abi"
	"github.com/wippyai/bridgegen/errors"
)

// Failure is the error a caller sees when a fallible call fails on the
// other side. Message is the callee's error text, unchanged.
type Failure struct {
	Message string
}

func (f *Failure) Error() string {
	return f.Message
}

// capture runs fn, turning a returned error or a panic into a message. No
// unwinding escapes it.
func capture(fn func() error) (msg string, failed bool) {
	defer func() {
		if r := recover(); r != nil {
			msg, failed = fmt.Sprint(r), true
		}
	}()
	if err := fn(); err != nil {
		return err.Error(), true
	}
	return "", false
}

// CallFallible runs fn as the implementation of a fallible function and
// writes its outcome at ret. On failure the message is copied into a
// managed string owned by the outcome.
func (rt *Runtime) CallFallible(ret uint32, fn func() error) error {
	out := abi.OutcomeFor(rt.target)
	if err := rt.zero(ret, out.Layout); err != nil {
		return err
	}
	msg, failed := capture(fn)
	if !failed {
		return rt.mem.WriteU8(ret+out.Tag.Offset, abi.OutcomeOK)
	}
	Logger().Debug("fallible call failed", zap.String("message", msg))
	if err := rt.mem.WriteU8(ret+out.Tag.Offset, abi.OutcomeErr); err != nil {
		return err
	}
	return rt.StringFrom(ret+out.Message.Offset, msg)
}

// OutcomeResult reads the outcome at ret as the caller: nil on success, a
// *Failure carrying the message otherwise. The message string is dropped.
func (rt *Runtime) OutcomeResult(ret uint32) error {
	out := abi.OutcomeFor(rt.target)
	tag, err := rt.mem.ReadU8(ret + out.Tag.Offset)
	if err != nil {
		return err
	}
	switch tag {
	case abi.OutcomeOK:
		return nil
	case abi.OutcomeErr:
	default:
		return errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
			Detail("outcome at %#x has tag %d", ret, tag).Build()
	}
	at := ret + out.Message.Offset
	msg, err := rt.ReadString(at)
	if err != nil {
		return err
	}
	if err := rt.VecDrop(rt.str, at); err != nil {
		return err
	}
	return &Failure{Message: msg}
}

// Call performs a fallible call from caller: the outcome slot lives on the
// caller's heap, fn runs as the callee, and the result is read back.
func (rt *Runtime) Call(caller abi.Side, fn func() error) error {
	out := abi.OutcomeFor(rt.target)
	ret, err := rt.Handle(caller, out.Layout)
	if err != nil {
		return err
	}
	defer rt.FreeHandle(caller, ret, out.Layout)
	if err := rt.CallFallible(ret, fn); err != nil {
		return err
	}
	return rt.OutcomeResult(ret)
}

// CallInfallible runs fn as the implementation of an infallible function.
// Any failure terminates the process; nothing unwinds into the caller.
func (rt *Runtime) CallInfallible(fn func() error) {
	if msg, failed := capture(fn); failed {
		rt.terminate(msg)
	}
}
