// Package pipeline drives a batch run: list the export files, segment each
// one, resolve senders and feed every message to the ingestion service.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"wa_ingest/chatlog"
	"wa_ingest/identity"
	"wa_ingest/logging"
	"wa_ingest/models"
	"wa_ingest/services"
	"wa_ingest/storage"
)

// MessageProcessor ingests one resolved message
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, in services.IncomingMessage) (*services.Result, error)
}

type Options struct {
	Location *time.Location // export timestamps; UTC when nil
	Workers  int            // files ingested concurrently; at least 1
	Log      *logging.Logger
}

type Orchestrator struct {
	source    Source
	store     storage.Store
	processor MessageProcessor
	segmenter *chatlog.Segmenter
	workers   int
	log       *logging.Logger
	now       func() time.Time
}

func NewOrchestrator(source Source, store storage.Store, processor MessageProcessor, opts Options) *Orchestrator {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	log := opts.Log
	if log == nil {
		log = logging.Nop()
	}
	return &Orchestrator{
		source:    source,
		store:     store,
		processor: processor,
		segmenter: chatlog.New(loc),
		workers:   workers,
		log:       log,
		now:       time.Now,
	}
}

// Run ingests every file of the source once. Failing files and messages are
// logged and counted; only a source that cannot be listed (or a cancelled
// context) makes Run return an error.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	files, err := o.source.List(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{FilesSeen: len(files)}
	o.log.Info("ingestion started", "source", o.source.Name(), "files", len(files), "workers", o.workers)

	run := &models.IngestRun{
		ID:        uuid.New(),
		Source:    o.source.Name(),
		StartedAt: o.now(),
		Status:    models.RunStatusRunning,
	}
	report.RunID = run.ID
	recorded := true
	if err := o.store.CreateRun(ctx, run); err != nil {
		o.log.Warn("failed to record run", "error", err)
		recorded = false
	}

	var g errgroup.Group
	g.SetLimit(o.workers)
	for _, name := range files {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			report.AddFile(o.processFile(ctx, name, report))
			return nil
		})
	}
	_ = g.Wait()

	if recorded {
		o.finishRun(ctx, run, report)
	}
	o.log.Info("ingestion finished",
		"files", report.FilesProcessed,
		"messages", report.MessagesSeen,
		"properties_created", report.PropertiesCreated,
		"errors", report.Errors(),
	)
	return report, ctx.Err()
}

func (o *Orchestrator) processFile(ctx context.Context, name string, report *Report) error {
	log := o.log.With("file", name)

	rc, err := o.source.Open(ctx, name)
	if err != nil {
		log.Error("failed to open export", "error", err)
		return err
	}
	result, err := o.segmenter.Segment(rc)
	rc.Close()
	if err != nil {
		log.Error("failed to read export", "error", err)
		return fmt.Errorf("segment %s: %w", name, err)
	}

	report.AddRejections(len(result.Rejected))
	for _, rej := range result.Rejected {
		log.Warn("message rejected", "line", rej.Line, "error", rej.Err)
	}

	log.Info("processing file", "messages", len(result.Messages))
	for _, m := range result.Messages {
		if err := ctx.Err(); err != nil {
			return err
		}

		sender := identity.ResolveSender(m.Sender, m.Text)
		res, err := o.processor.ProcessMessage(ctx, services.IncomingMessage{
			Date:         m.Date,
			SenderNumber: sender.Number,
			SenderName:   sender.Name,
			Text:         m.Text,
			SourceFile:   name,
		})
		if err != nil {
			report.AddMessageError()
			log.Error("failed to ingest message", "line", m.Line, "error", err)
			continue
		}
		if res.Outcome == services.OutcomeUnattributed {
			log.Debug("sender not resolved", "line", m.Line)
		}
		report.AddResult(res)
	}
	return nil
}

func (o *Orchestrator) finishRun(ctx context.Context, run *models.IngestRun, report *Report) {
	now := o.now()
	run.FinishedAt = &now
	run.FilesProcessed = report.FilesProcessed
	run.MessagesSeen = report.MessagesSeen
	run.PropertyMessages = report.PropertyRelated
	run.PropertiesCreated = report.PropertiesCreated
	run.UsersCreated = report.UsersCreated
	run.ErrorsCount = report.Errors()
	run.Metadata = report.JSON()
	run.Status = runStatus(ctx, report)

	// the run context may be cancelled already; the record should still land
	if err := o.store.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		o.log.Warn("failed to finish run record", "error", err)
	}
}

func runStatus(ctx context.Context, r *Report) models.RunStatus {
	switch {
	case ctx.Err() != nil:
		return models.RunStatusFailed
	case r.FilesSeen > 0 && r.FileErrors == r.FilesSeen:
		return models.RunStatusFailed
	case r.Errors() > 0:
		return models.RunStatusPartial
	default:
		return models.RunStatusCompleted
	}
}
