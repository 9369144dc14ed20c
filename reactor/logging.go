package reactor

import (
	"io"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the logger type accepted by WithLogger.
type Logger = logiface.Logger[logiface.Event]

// NewLogger returns a JSON logger writing to w, at the given minimum level.
func NewLogger(w io.Writer, level logiface.Level) *Logger {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	).Logger()
}

// defaultMisuseRates bounds programming-error reports, per operation.
var defaultMisuseRates = map[time.Duration]int{
	time.Second: 5,
	time.Minute: 60,
}

// misuseLog reports programming errors (wrong goroutine, double wait, stale
// IDs). Reports are rate limited per operation, since a misbehaving caller
// tends to repeat itself in a loop.
type misuseLog struct {
	logger  *Logger
	limiter *catrate.Limiter
}

func newMisuseLog(logger *Logger, rates map[time.Duration]int) *misuseLog {
	x := &misuseLog{logger: logger}
	if logger != nil && len(rates) != 0 {
		x.limiter = catrate.NewLimiter(rates)
	}
	return x
}

// build returns nil if logging is disabled or op is currently limited.
func (x *misuseLog) build(op string) *logiface.Builder[logiface.Event] {
	if x == nil || x.logger == nil {
		return nil
	}
	if _, ok := x.limiter.Allow(op); !ok {
		return nil
	}
	return x.logger.Err().Str("op", op)
}
