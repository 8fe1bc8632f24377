// Package worker implements the crawl job state machine.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/crawlkit/crawld/internal/crawl"
	"github.com/crawlkit/crawld/internal/metrics"
)

// Config controls Worker behavior.
type Config struct {
	ContentType  string
	BlobPrefix   string
	Topic        string
	FetchTimeout time.Duration
}

// Worker consumes queued tasks and drives each record from Running to
// a terminal state. A fault never escapes the task boundary: any
// failure resolves to the Error status.
type Worker struct {
	queue     crawl.Queue
	store     crawl.RecordStore
	artifacts crawl.ArtifactStore
	publisher crawl.Publisher
	fetcher   crawl.Fetcher
	clock     crawl.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker.
func New(
	queue crawl.Queue,
	store crawl.RecordStore,
	artifacts crawl.ArtifactStore,
	publisher crawl.Publisher,
	fetcher crawl.Fetcher,
	clock crawl.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if cfg.ContentType == "" {
		cfg.ContentType = "text/html; charset=utf-8"
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	return &Worker{
		queue:     queue,
		store:     store,
		artifacts: artifacts,
		publisher: publisher,
		fetcher:   fetcher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, consuming tasks until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		task, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.processTask(ctx, task)
	}
}

func (w *Worker) processTask(ctx context.Context, task crawl.Task) {
	metrics.WorkerStarted()
	defer metrics.WorkerFinished()

	defer func() {
		if rec := recover(); rec != nil {
			w.logger.Error("panic recovered in task",
				zap.String("crawl_id", task.CrawlID),
				zap.String("task_id", task.TaskID),
				zap.Any("panic", rec),
			)
			w.resolve(ctx, task, crawl.StatusError, "", "panic")
		}
	}()

	// Always overwrite to Running, even on re-delivery.
	if err := w.store.UpdateStatus(ctx, task.CrawlID, crawl.StatusRunning, ""); err != nil {
		w.logger.Error("set running failed",
			zap.String("crawl_id", task.CrawlID),
			zap.Error(err),
		)
		return
	}
	w.logger.Info("crawl started",
		zap.String("crawl_id", task.CrawlID),
		zap.String("task_id", task.TaskID),
	)

	rec, err := w.store.GetByID(ctx, task.CrawlID)
	if err != nil {
		w.logger.Error("load record failed",
			zap.String("crawl_id", task.CrawlID),
			zap.Error(err),
		)
		w.resolve(ctx, task, crawl.StatusError, "", "persistence")
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, w.cfg.FetchTimeout)
	defer cancel()

	resp, err := w.fetcher.Fetch(fetchCtx, rec.URL)
	if err != nil {
		kind := fetchErrorKind(err)
		metrics.ObserveFetch(0, kind)
		w.logger.Warn("fetch failed",
			zap.String("crawl_id", task.CrawlID),
			zap.String("url", rec.URL),
			zap.String("kind", kind),
			zap.Error(err),
		)
		w.resolve(ctx, task, crawl.StatusError, "", kind)
		return
	}
	metrics.ObserveFetch(resp.Duration, "")

	if resp.StatusCode != http.StatusOK {
		w.logger.Warn("fetch returned non-200",
			zap.String("crawl_id", task.CrawlID),
			zap.String("url", rec.URL),
			zap.Int("status_code", resp.StatusCode),
		)
		w.resolve(ctx, task, crawl.StatusError, "", "http_status")
		return
	}

	ref, err := w.artifacts.Put(ctx, w.buildBlobPath(rec), w.cfg.ContentType, resp.Body)
	if err != nil {
		w.logger.Error("persist artifact failed",
			zap.String("crawl_id", task.CrawlID),
			zap.Error(err),
		)
		w.resolve(ctx, task, crawl.StatusError, "", "artifact")
		return
	}

	w.resolve(ctx, task, crawl.StatusComplete, ref, "")
}

// resolve writes the terminal status and emits the completion event.
// The status write and the artifact reference land in one update so
// the ref is never observable without Complete.
func (w *Worker) resolve(ctx context.Context, task crawl.Task, status crawl.Status, artifactRef, errKind string) {
	if err := w.store.UpdateStatus(ctx, task.CrawlID, status, artifactRef); err != nil {
		w.logger.Error("terminal status update failed",
			zap.String("crawl_id", task.CrawlID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return
	}
	metrics.ObserveJob(string(status))
	w.logger.Info("crawl resolved",
		zap.String("crawl_id", task.CrawlID),
		zap.String("task_id", task.TaskID),
		zap.String("status", string(status)),
		zap.String("error_kind", errKind),
	)
	w.publishEvent(ctx, task, status, artifactRef, errKind)
}

func (w *Worker) publishEvent(ctx context.Context, task crawl.Task, status crawl.Status, artifactRef, errKind string) {
	if w.cfg.Topic == "" || w.publisher == nil {
		return
	}
	payload := map[string]any{
		"crawl_id":     task.CrawlID,
		"task_id":      task.TaskID,
		"status":       string(status),
		"artifact_ref": artifactRef,
		"error_kind":   errKind,
		"timestamp":    w.clock.Now().Format(time.RFC3339),
	}
	if _, err := w.publisher.Publish(ctx, w.cfg.Topic, payload); err != nil {
		// Events are ancillary; a publish failure never flips the status.
		w.logger.Warn("publish completion event failed",
			zap.String("crawl_id", task.CrawlID),
			zap.Error(err),
		)
	}
}

func (w *Worker) buildBlobPath(rec crawl.Record) string {
	prefix := strings.Trim(w.cfg.BlobPrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s.html", rec.ID, rec.ContentHash)
	}
	return fmt.Sprintf("%s/%s/%s.html", prefix, rec.ID, rec.ContentHash)
}

// fetchErrorKind collapses fetch failures into coarse kinds for logs
// and metrics. Status-wise they all resolve to Error.
func fetchErrorKind(err error) string {
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &dnsErr):
		return "dns"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	default:
		return "network"
	}
}
