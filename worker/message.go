package worker

import "github.com/acoustrace/acoustrace/raytrace"

// Message is exchanged between the pool and its workers. Payloads are wire-encoded so that
// workers never share memory with the caller.
type Message interface {
	message()
}

// WorkStarted hands a wire-encoded request batch to a worker. The worker answers on reply
// exactly once with either WorkComplete or WorkErrored.
type WorkStarted struct {
	Payload []byte
	Filter  raytrace.Filter

	reply chan<- Message
}

// WorkComplete carries the wire-encoded results of a batch.
type WorkComplete struct {
	Payload []byte
}

// WorkErrored reports a batch that could not be traced.
type WorkErrored struct {
	Err error
}

func (WorkStarted) message()  {}
func (WorkComplete) message() {}
func (WorkErrored) message()  {}
