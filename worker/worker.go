package worker

import (
	"strconv"
	"time"

	"github.com/acoustrace/acoustrace/oerror"
	"github.com/acoustrace/acoustrace/raytrace"
	"github.com/acoustrace/acoustrace/wire"
	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

type worker struct {
	id  int
	log *logrus.Logger

	inbox   chan WorkStarted
	tracer  raytrace.Tracer
	decoder wire.RequestDecoder
}

func newWorker(id int, log *logrus.Logger, tracer raytrace.Tracer) *worker {
	return &worker{
		id:     id,
		log:    log,
		inbox:  make(chan WorkStarted, 1),
		tracer: tracer,
	}
}

// run handles batches until the inbox is closed. Batches already queued are still answered.
func (w *worker) run() {
	defer sentry.Recover()

	for msg := range w.inbox {
		msg.reply <- w.handle(msg)
	}
}

func (w *worker) handle(msg WorkStarted) (reply Message) {
	defer func() {
		if v := recover(); v != nil {
			hub := sentry.CurrentHub().Clone()
			hub.ConfigureScope(func(scope *sentry.Scope) {
				scope.SetTag("worker", strconv.Itoa(w.id))
			})
			hub.Recover(v)
			hub.Flush(time.Second * 5)

			w.log.Errorf("worker %d recovered from panic: %v", w.id, v)
			reply = WorkErrored{Err: oerror.New("worker %d panicked: %v", w.id, v)}
		}
	}()

	sources, requests, err := w.decoder.Decode(msg.Payload)
	if err != nil {
		return WorkErrored{Err: err}
	}

	tracer := w.tracer
	tracer.Filter = msg.Filter
	results := make([]raytrace.Result, len(requests))
	for i, req := range requests {
		res, err := tracer.TraceRequest(req, sources)
		if err != nil {
			return WorkErrored{Err: err}
		}
		results[i] = res
	}

	payload, err := wire.EncodeResults(results)
	if err != nil {
		return WorkErrored{Err: err}
	}
	return WorkComplete{Payload: payload}
}
