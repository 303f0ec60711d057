package llm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Call is one journaled generation.
type Call struct {
	Prompt   string
	Response string
	CacheHit bool
	Err      error
	Duration time.Duration
	Info     CallInfo
}

// Journal records every generation call, cached or not.
type Journal interface {
	Record(ctx context.Context, call Call)
	Close() error
}

// NopJournal discards all calls.
type NopJournal struct{}

// Record does nothing.
func (NopJournal) Record(context.Context, Call) {}

// Close does nothing.
func (NopJournal) Close() error { return nil }

// CallInfo identifies the pipeline position of a call.
type CallInfo struct {
	RunID   string
	NodeID  string
	Attempt int
}

type callInfoKey struct{}

// WithCallInfo attaches call identification to ctx.
func WithCallInfo(ctx context.Context, info CallInfo) context.Context {
	return context.WithValue(ctx, callInfoKey{}, info)
}

// CallInfoFrom returns the identification attached by WithCallInfo.
func CallInfoFrom(ctx context.Context) CallInfo {
	info, _ := ctx.Value(callInfoKey{}).(CallInfo)
	return info
}

// FileJournal appends JSON lines to <dir>/llm_calls_YYYYMMDD.log,
// switching files when the date changes.
type FileJournal struct {
	dir string
	now func() time.Time

	mu      sync.Mutex
	day     string
	logger  *zap.Logger
	closeFn func()
	closed  bool
}

// JournalOption configures a FileJournal.
type JournalOption func(*FileJournal)

// WithClock overrides the time source used for file names and entries.
func WithClock(now func() time.Time) JournalOption {
	return func(j *FileJournal) { j.now = now }
}

// NewFileJournal creates dir if needed and returns a journal writing into it.
func NewFileJournal(dir string, opts ...JournalOption) (*FileJournal, error) {
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	j := &FileJournal{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// JournalPath returns the file a journal in dir writes on the given day.
func JournalPath(dir string, day time.Time) string {
	return filepath.Join(dir, "llm_calls_"+day.Format("20060102")+".log")
}

// Record implements Journal. Write failures are dropped; the journal never
// fails a generation.
func (j *FileJournal) Record(_ context.Context, call Call) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return
	}
	now := j.now()
	if err := j.rotate(now); err != nil {
		return
	}

	fields := []zap.Field{
		zap.Time("ts", now),
		zap.String("prompt", call.Prompt),
		zap.String("response", call.Response),
		zap.Bool("cache_hit", call.CacheHit),
		zap.Duration("duration", call.Duration),
	}
	if call.Info.RunID != "" {
		fields = append(fields,
			zap.String("run_id", call.Info.RunID),
			zap.String("node_id", call.Info.NodeID),
			zap.Int("attempt", call.Info.Attempt),
		)
	}
	if call.Err != nil {
		fields = append(fields, zap.Error(call.Err))
		j.logger.Error("llm call", fields...)
		return
	}
	j.logger.Info("llm call", fields...)
}

func (j *FileJournal) rotate(now time.Time) error {
	day := now.Format("20060102")
	if j.logger != nil && day == j.day {
		return nil
	}
	j.release()

	sink, closeFn, err := zap.Open(JournalPath(j.dir, now))
	if err != nil {
		return err
	}
	encCfg := zap.NewProductionEncoderConfig()
	// entries carry their own "ts" field
	encCfg.TimeKey = ""
	encCfg.MessageKey = "event"
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), sink, zapcore.DebugLevel)

	j.logger = zap.New(core)
	j.closeFn = closeFn
	j.day = day
	return nil
}

func (j *FileJournal) release() {
	if j.logger != nil {
		_ = j.logger.Sync()
		j.closeFn()
		j.logger = nil
		j.closeFn = nil
	}
}

// Close implements Journal.
func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.release()
	j.closed = true
	return nil
}
