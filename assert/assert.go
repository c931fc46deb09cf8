package assert

import "github.com/acoustrace/acoustrace/oerror"

// IsTrue panics with a formatted oerror when ok is false. It guards internal invariants that
// can only break through a programming error; the worker pool recovers these panics.
func IsTrue(ok bool, message string, args ...interface{}) {
	if !ok {
		panic(oerror.New(message, args...))
	}
}
