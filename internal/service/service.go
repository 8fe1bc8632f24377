// Package service implements submission, re-crawl and status lookup
// on top of the record store and dispatcher.
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/crawlkit/crawld/internal/crawl"
	"github.com/crawlkit/crawld/internal/metrics"
)

// Dispatcher enqueues a fetch task for a crawl id.
type Dispatcher interface {
	Dispatch(ctx context.Context, crawlID string) (taskID string, err error)
}

// Service coordinates the crawl lifecycle for API callers.
type Service struct {
	store      crawl.RecordStore
	dispatcher Dispatcher
	hasher     crawl.Hasher
	idGen      crawl.IDGenerator
	clock      crawl.Clock
	logger     *zap.Logger
}

// New constructs a Service.
func New(
	store crawl.RecordStore,
	dispatcher Dispatcher,
	hasher crawl.Hasher,
	idGen crawl.IDGenerator,
	clock crawl.Clock,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		hasher:     hasher,
		idGen:      idGen,
		clock:      clock,
		logger:     logger,
	}
}

// Submit registers the given URLs and returns one crawl id per URL,
// in submission order. A URL whose hash already has a record yields
// that record's id and no new task. Any empty URL fails the whole
// batch before any record is created.
func (s *Service) Submit(ctx context.Context, urls []string) ([]string, error) {
	for _, u := range urls {
		if u == "" {
			return nil, crawl.ErrEmptyURL
		}
	}

	ids := make([]string, 0, len(urls))
	for _, u := range urls {
		id, err := s.submitOne(ctx, u)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Service) submitOne(ctx context.Context, url string) (string, error) {
	hash, err := s.hasher.Hash(url)
	if err != nil {
		return "", fmt.Errorf("hash url: %w", err)
	}

	if existing, err := s.store.GetByHash(ctx, hash); err == nil {
		metrics.ObserveSubmission(metrics.SubmissionDeduplicated)
		s.logger.Debug("url already known",
			zap.String("crawl_id", existing.ID),
			zap.String("url", url),
		)
		return existing.ID, nil
	} else if !errors.Is(err, crawl.ErrNotFound) {
		return "", fmt.Errorf("lookup by hash: %w", err)
	}

	id, err := s.idGen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate crawl id: %w", err)
	}
	rec, created, err := s.store.Create(ctx, crawl.Record{
		ID:          id,
		URL:         url,
		ContentHash: hash,
		Status:      crawl.StatusAccepted,
		CreatedAt:   s.clock.Now(),
		UpdatedAt:   s.clock.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("create record: %w", err)
	}
	if !created {
		// Another submission won the insert race for this hash.
		metrics.ObserveSubmission(metrics.SubmissionDeduplicated)
		return rec.ID, nil
	}

	taskID, err := s.dispatcher.Dispatch(ctx, rec.ID)
	if err != nil {
		return "", fmt.Errorf("dispatch crawl %s: %w", rec.ID, err)
	}
	if err := s.store.SetTaskID(ctx, rec.ID, taskID); err != nil {
		s.logger.Warn("record task id update failed",
			zap.String("crawl_id", rec.ID),
			zap.Error(err),
		)
	}

	metrics.ObserveSubmission(metrics.SubmissionCreated)
	s.logger.Info("crawl accepted",
		zap.String("crawl_id", rec.ID),
		zap.String("task_id", taskID),
		zap.String("url", url),
	)
	return rec.ID, nil
}

// Recrawl dispatches a fresh task for an existing record. The
// record's URL and hash are untouched; its status changes only once
// a worker picks the task up.
func (s *Service) Recrawl(ctx context.Context, id string) (string, error) {
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return "", err
	}

	taskID, err := s.dispatcher.Dispatch(ctx, rec.ID)
	if err != nil {
		return "", fmt.Errorf("dispatch crawl %s: %w", rec.ID, err)
	}
	if err := s.store.SetTaskID(ctx, rec.ID, taskID); err != nil {
		s.logger.Warn("record task id update failed",
			zap.String("crawl_id", rec.ID),
			zap.Error(err),
		)
	}

	s.logger.Info("recrawl accepted",
		zap.String("crawl_id", rec.ID),
		zap.String("task_id", taskID),
	)
	return rec.ID, nil
}

// Status returns the record's lifecycle view. The artifact reference
// is included only for Complete records.
func (s *Service) Status(ctx context.Context, id string) (crawl.StatusView, error) {
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return crawl.StatusView{}, err
	}
	view := crawl.StatusView{Status: rec.Status}
	if rec.Status == crawl.StatusComplete {
		view.ArtifactRef = rec.ArtifactRef
	}
	return view, nil
}
