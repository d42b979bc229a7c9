package structured

import (
	"context"
	"errors"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/structflow/llm/streaming"
	"github.com/BaSui01/structflow/structured/content"
	"github.com/BaSui01/structflow/structured/jsoncomplete"
	"github.com/BaSui01/structflow/types"
)

// Snapshot is one step of a decode stream.
type Snapshot[T any] struct {
	Partial Partial[T]
	// Complete reports that every required field is present.
	Complete bool
	// Seq is the number of deltas consumed when the snapshot was taken.
	Seq int
	// Stale is set when the latest delta left the buffer without a safe
	// completion and the previous snapshot is repeated.
	Stale bool
}

// Value returns the best-effort decoded value.
func (s Snapshot[T]) Value() T { return s.Partial.Value() }

// Content returns the structured content behind the snapshot.
func (s Snapshot[T]) Content() content.Value { return s.Partial.Content() }

// Stream decodes one upstream delta sequence. It is accumulating until the
// upstream ends, fails or the consumer stops, and finished afterwards.
// A Stream has one producer and one consumer and must be iterated once.
type Stream[T any] struct {
	id  string
	dec *Decoder[T]
	ctx context.Context
	src streaming.Source

	used atomic.Bool
	buf  *streaming.DeltaBuffer
	last Partial[T]
	seen bool

	final    T
	hasFinal bool
	err      error
	stats    StreamStats
	start    time.Time

	span    trace.Span
	once    sync.Once
	onClose []func()
}

func newStream[T any](ctx context.Context, dec *Decoder[T], src streaming.Source) *Stream[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Stream[T]{
		id:  uuid.NewString(),
		dec: dec,
		ctx: ctx,
		src: src,
		buf: streaming.NewDeltaBuffer(0),
	}
}

// ID identifies the stream in logs and spans.
func (s *Stream[T]) ID() string { return s.id }

// OnClose registers fn to run once when the stream finishes.
// It must be called before iteration starts.
func (s *Stream[T]) OnClose(fn func()) {
	s.onClose = append(s.onClose, fn)
}

// Snapshots yields one snapshot per upstream delta that has a safe
// completion. A failure is yielded as the last element. Breaking out of the
// loop stops the upstream producer.
func (s *Stream[T]) Snapshots() iter.Seq2[Snapshot[T], error] {
	return func(yield func(Snapshot[T], error) bool) {
		if !s.used.CompareAndSwap(false, true) {
			yield(Snapshot[T]{}, ErrStreamConsumed)
			return
		}

		ctx, cancel := context.WithCancel(s.ctx)
		defer cancel()
		ctx, s.span = s.dec.tracer.Start(ctx, "structured.decode",
			trace.WithAttributes(attribute.String("structflow.stream_id", s.id)))
		s.start = time.Now()

		status := StatusCompleted
		defer func() { s.finish(status) }()

		for delta, err := range s.src {
			if err != nil {
				status = s.upstreamFailed(err)
				yield(Snapshot[T]{}, s.err)
				return
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				s.err = types.NewError(types.ErrCancelled, "decode cancelled").WithCause(ctxErr)
				status = StatusCancelled
				yield(Snapshot[T]{}, s.err)
				return
			}

			s.buf.Append(delta)
			s.stats.Deltas++
			snap, ok := s.step()
			if !ok {
				continue
			}
			s.stats.Snapshots++
			s.dec.observer.ObserveSnapshot(snap.Complete)
			if !yield(snap, nil) {
				s.err = types.NewError(types.ErrCancelled, "consumer stopped iterating")
				status = StatusCancelled
				return
			}
		}

		if s.stats.Snapshots == 0 {
			s.err = ErrNoContent
			status = StatusNoContent
			yield(Snapshot[T]{}, s.err)
			return
		}

		final, err := s.dec.decodeText(s.buf.String())
		if err != nil {
			s.err = err
			status = StatusFailed
			yield(Snapshot[T]{}, err)
			return
		}
		s.final, s.hasFinal = final, true
	}
}

// step runs completion, parsing and projection over the whole buffer.
// The work is repeated from scratch on every delta, which is linear in the
// buffer and quadratic over a stream; structured payloads stay small.
func (s *Stream[T]) step() (Snapshot[T], bool) {
	text := s.buf.String()
	outcome := OutcomeValid

	res, err := jsoncomplete.Complete(s.buf.Bytes(), s.dec.complete)
	var v content.Value
	if err == nil {
		if !res.Valid {
			outcome = OutcomeCompleted
		}
		v, err = content.ParseString(res.ApplyString(text), s.dec.parse)
		if err != nil {
			outcome = OutcomeParseFailed
		}
	} else {
		outcome = completionOutcome(err)
	}

	var p Partial[T]
	if err == nil {
		p, err = Project[T](v, s.dec.schema, true)
		if err != nil {
			outcome = OutcomeProjectionFailed
		}
	}

	s.dec.observer.ObserveCompletion(outcome)
	if ce := s.dec.logger.Check(zap.DebugLevel, "delta processed"); ce != nil {
		ce.Write(
			zap.String("stream_id", s.id),
			zap.Int("seq", s.stats.Deltas),
			zap.Int("buffer_len", len(text)),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
	}

	if err != nil {
		s.span.AddEvent("completion_fallback", trace.WithAttributes(
			attribute.String("outcome", outcome),
			attribute.Int("seq", s.stats.Deltas),
		))
		if !s.seen {
			return Snapshot[T]{}, false
		}
		return Snapshot[T]{Partial: s.last, Complete: s.last.IsComplete(), Seq: s.stats.Deltas, Stale: true}, true
	}

	s.last, s.seen = p, true
	return Snapshot[T]{Partial: p, Complete: p.IsComplete(), Seq: s.stats.Deltas}, true
}

func completionOutcome(err error) string {
	switch {
	case errors.Is(err, jsoncomplete.ErrDepthExceeded):
		return OutcomeDepthExceeded
	case errors.Is(err, jsoncomplete.ErrNotCompletable):
		return OutcomeNotCompletable
	default:
		return OutcomeMalformed
	}
}

// upstreamFailed records err and returns the termination status.
func (s *Stream[T]) upstreamFailed(err error) string {
	if s.stats.Snapshots == 0 {
		s.err = ErrNoContent.WithCause(err)
		return StatusNoContent
	}
	s.err = err
	if types.IsErrorCode(err, types.ErrCancelled) {
		return StatusCancelled
	}
	return StatusFailed
}

// finish records termination. It runs once per stream.
func (s *Stream[T]) finish(status string) {
	s.once.Do(func() {
		s.stats.Bytes = s.buf.Len()
		s.stats.Duration = time.Since(s.start)

		fields := []zap.Field{
			zap.String("stream_id", s.id),
			zap.String("status", status),
			zap.Int("deltas", s.stats.Deltas),
			zap.Int("snapshots", s.stats.Snapshots),
			zap.Int("bytes", s.stats.Bytes),
			zap.Duration("duration", s.stats.Duration),
		}
		if s.err != nil && status != StatusCancelled {
			s.dec.logger.Warn("decode stream finished", append(fields, zap.Error(s.err))...)
		} else {
			s.dec.logger.Info("decode stream finished", fields...)
		}

		s.dec.observer.ObserveStreamEnd(status, s.stats)

		s.span.SetAttributes(
			attribute.String("structflow.status", status),
			attribute.Int("structflow.deltas", s.stats.Deltas),
			attribute.Int("structflow.snapshots", s.stats.Snapshots),
		)
		if s.err != nil && status != StatusCancelled {
			s.span.RecordError(s.err)
			s.span.SetStatus(codes.Error, s.err.Error())
		} else {
			s.span.SetStatus(codes.Ok, "")
		}
		s.span.End()

		for _, fn := range s.onClose {
			fn()
		}
	})
}

// Collect consumes the stream and returns the final value.
// It fails with ErrNoContent when no snapshot was produced.
func (s *Stream[T]) Collect() (T, error) {
	for _, err := range s.Snapshots() {
		if err != nil {
			var zero T
			return zero, err
		}
	}
	return s.Final()
}

// CollectOptional is Collect returning nil instead of ErrNoContent.
func (s *Stream[T]) CollectOptional() (*T, error) {
	v, err := s.Collect()
	if errors.Is(err, ErrNoContent) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Err returns the error that finished the stream, if any.
func (s *Stream[T]) Err() error { return s.err }

// Final returns the value built after the upstream ended.
// It is only available once the stream finished successfully.
func (s *Stream[T]) Final() (T, error) {
	if !s.hasFinal {
		var zero T
		if s.err != nil {
			return zero, s.err
		}
		return zero, types.NewError(types.ErrInvalidRequest, "stream not finished")
	}
	return s.final, nil
}

// Stats returns the counters of a finished stream.
func (s *Stream[T]) Stats() StreamStats { return s.stats }
