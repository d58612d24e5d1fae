package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/flatdoc/internal/journal"
	"github.com/MeKo-Tech/flatdoc/internal/pipeline"
)

// RecordTo stores every reply in j. Journal failures are logged and never
// affect the reply.
func RecordTo(j *journal.Journal) LoopOption {
	return WithObserver(func(r Reply, res *pipeline.Result) {
		e := journal.Entry{
			RequestID:   r.RequestID,
			Status:      r.Status,
			OutputPath:  r.ImgOutputPath,
			Preprocess:  r.PreprocessExecTime,
			Recognition: r.OCRExecTime,
		}
		if res != nil {
			e.Filename = res.Filename
		}
		if r.Error != nil {
			e.Kind = string(r.Error.Kind)
			e.Stage = r.Error.Stage
			e.Message = r.Error.Message
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := j.Record(ctx, e); err != nil {
			slog.Warn("failed to record request", "request_id", r.RequestID, "error", err)
		}
	})
}
