package reportrunner

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Runner invokes reports one after another over a single Caller. The first
// failure stops the run; output already written is left as is.
type Runner struct {
	Caller Caller
	Out    RowWriter
	Logger *slog.Logger
	RunID  string
	Record func(HistoryEntry)
}

func (r *Runner) Run(ctx context.Context, reports []Report) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	for _, rep := range reports {
		start := time.Now()
		n, err := runReport(ctx, r.Caller, rep, r.Out)
		elapsed := time.Since(start)

		r.record(rep, n, elapsed, err)

		if err != nil {
			return errors.Join(err, r.Out.Flush())
		}

		logger.Debug("report finished",
			slog.String("report", rep.Key),
			slog.String("procedure", rep.Procedure),
			slog.Int("rows", n),
			slog.Duration("elapsed", elapsed),
		)
	}

	return r.Out.Flush()
}

func (r *Runner) record(rep Report, rows int, elapsed time.Duration, err error) {
	if r.Record == nil {
		return
	}

	entry := HistoryEntry{
		Timestamp:  time.Now().UTC(),
		RunID:      r.RunID,
		Report:     rep.Key,
		Procedure:  rep.Procedure,
		Rows:       rows,
		DurationMs: elapsed.Milliseconds(),
	}
	for _, p := range rep.Params {
		entry.Args = append(entry.Args, p.Value)
	}
	if err != nil {
		entry.Error = err.Error()
	}
	r.Record(entry)
}
