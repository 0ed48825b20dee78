package hub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-dialhub/dialwire"
	"github.com/arloliu/go-dialhub/logger"
	"github.com/arloliu/go-dialhub/transport"
)

// Exchanger serializes all command/response exchanges over one transport.
//
// The hub bus is half-duplex at the firmware level, so every operation in
// the system funnels through Execute: one exchange in flight at a time,
// concurrent callers block rather than interleave. Responses correlate to
// the immediately preceding command by the ordering of the critical section
// alone; there is no pipelining.
type Exchanger struct {
	mu      sync.Mutex
	tr      transport.Transport
	logger  logger.Logger
	metrics *Metrics

	// usable flips to false on the first transport failure and stays false
	// until the connection is reopened.
	usable atomic.Bool
}

// NewExchanger creates an Exchanger over an opened transport.
func NewExchanger(tr transport.Transport, l logger.Logger, metrics *Metrics) *Exchanger {
	ex := &Exchanger{tr: tr, logger: l, metrics: metrics}
	ex.usable.Store(true)

	return ex
}

// Usable reports whether the exchanger has seen a transport failure.
func (ex *Exchanger) Usable() bool {
	return ex.usable.Load()
}

// Execute writes cmd to the wire and decodes one response frame within
// timeout.
//
// Error taxonomy:
//   - *TimeoutError: no complete frame within timeout; recoverable.
//   - dialwire.ErrMalformedFrame (wrapped): bytes arrived but did not parse;
//     treated like a timeout by callers, logged distinctly.
//   - *TransportError: port-level failure; the exchanger refuses further
//     traffic until the connection is reopened.
//   - *StatusError: a well-formed status reply with a non-zero code.
//
// Execute never retries.
func (ex *Exchanger) Execute(ctx context.Context, cmd *dialwire.Command, timeout time.Duration) (*dialwire.Message, error) {
	if !ex.usable.Load() {
		return nil, ErrNotConnected
	}

	ex.mu.Lock()
	defer ex.mu.Unlock()

	// Stale bytes from a prior aborted exchange would be misattributed to
	// this command.
	if err := ex.tr.ResetInput(); err != nil {
		return nil, ex.transportFailure(cmd.Op, err)
	}

	if err := ex.tr.Write(cmd.Encode()); err != nil {
		return nil, ex.transportFailure(cmd.Op, err)
	}
	ex.metrics.incCmdSendCount()

	start := time.Now()
	frame, err := dialwire.ReadFrame(ctx, ex.tr.ReadByte, timeout)
	if err != nil {
		return nil, ex.classifyReadError(ctx, cmd.Op, err, time.Since(start))
	}

	msg, err := dialwire.Decode(frame)
	if err != nil {
		ex.metrics.incMalformedCount()
		ex.logger.Warn("malformed response frame", "op", cmd.Op, "frame", string(frame), "error", err)

		return nil, err
	}
	ex.metrics.incRespRecvCount()

	if msg.IsStatus() && !msg.Status.OK() {
		ex.metrics.incStatusFailCount()

		return msg, &StatusError{Op: cmd.Op, Status: msg.Status}
	}

	return msg, nil
}

func (ex *Exchanger) classifyReadError(ctx context.Context, op byte, err error, elapsed time.Duration) error {
	switch {
	case ctx.Err() != nil:
		return ctx.Err()

	case errors.Is(err, dialwire.ErrTimeout), errors.Is(err, transport.ErrReadTimeout):
		ex.metrics.incTimeoutCount()

		return &TimeoutError{Op: op, Elapsed: elapsed}

	case errors.Is(err, dialwire.ErrMalformedFrame):
		ex.metrics.incMalformedCount()
		ex.logger.Warn("unparseable frame header", "op", op, "error", err)

		return err

	default:
		return ex.transportFailure(op, err)
	}
}

func (ex *Exchanger) transportFailure(op byte, err error) error {
	ex.usable.Store(false)
	ex.logger.Error("transport failure, connection unusable", "op", op, "error", err)

	return &TransportError{Op: op, Err: err}
}
