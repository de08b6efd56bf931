// Package service ties the migration engine to its collaborators: the result
// cache, the model folder and the audit trail.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/conduit-lang/modelmig/internal/archive"
	"github.com/conduit-lang/modelmig/internal/audit"
	"github.com/conduit-lang/modelmig/internal/batch"
	"github.com/conduit-lang/modelmig/internal/cache"
	"github.com/conduit-lang/modelmig/internal/metamodel"
	"github.com/conduit-lang/modelmig/internal/migerr"
	"github.com/conduit-lang/modelmig/internal/storage"
)

// Recorder stores audit runs
type Recorder interface {
	Record(ctx context.Context, runs []audit.Run) error
}

// Options configures the optional collaborators of a Service. Nil collaborators
// are skipped.
type Options struct {
	Cache    cache.Cache
	CacheTTL time.Duration
	Store    *storage.ModelStore
	Recorder Recorder
	Logger   *zap.Logger
	Workers  int

	closers []func() error
}

// Service migrates uploaded batches into zip archives
type Service struct {
	registry    *metamodel.Registry
	coordinator *batch.Coordinator
	cache       cache.Cache
	cacheTTL    time.Duration
	store       *storage.ModelStore
	recorder    Recorder
	logger      *zap.Logger
	closers     []func() error
}

// New creates a new migration service
func New(registry *metamodel.Registry, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		registry:    registry,
		coordinator: batch.NewCoordinator(registry, batch.WithLogger(logger), batch.WithWorkers(opts.Workers)),
		cache:       opts.Cache,
		cacheTTL:    opts.CacheTTL,
		store:       opts.Store,
		recorder:    opts.Recorder,
		logger:      logger,
		closers:     opts.closers,
	}
}

// Migrate migrates a batch and returns the zip archive of the migrated documents.
// Engine failures are returned as *migerr.BatchMigrationError.
func (s *Service) Migrate(ctx context.Context, batchID string, files []batch.File) ([]byte, error) {
	logger := s.logger.With(zap.String("batch", batchID))
	key := BatchKey(s.registry.Fingerprint(), files)

	if s.cache != nil {
		data, err := s.cache.Get(ctx, key)
		if err == nil {
			logger.Debug("serving batch from cache", zap.String("key", key))
			return data, nil
		}
		if !cache.IsCacheMiss(err) {
			logger.Warn("cache lookup failed", zap.Error(err))
		}
	}

	if s.store != nil {
		if err := s.store.SaveInput(batchID, toDocuments(files)); err != nil {
			return nil, fmt.Errorf("failed to store batch input: %w", err)
		}
	}

	outcome, err := s.coordinator.MigrateBatch(files)
	if err != nil {
		s.audit(ctx, logger, failureRuns(batchID, err))
		return nil, err
	}

	data, err := archive.Write(outcome.Files)
	if err != nil {
		return nil, err
	}

	if s.store != nil {
		if err := s.store.SaveOutput(batchID, toDocuments(outcome.Files)); err != nil {
			return nil, fmt.Errorf("failed to store batch output: %w", err)
		}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
			logger.Warn("failed to cache batch", zap.Error(err))
		}
	}

	s.audit(ctx, logger, successRuns(batchID, outcome.Reports))
	return data, nil
}

// Catalogue describes the registered document kinds
func (s *Service) Catalogue() []metamodel.KindInfo {
	return s.registry.Describe()
}

// Close releases the collaborators opened for the service
func (s *Service) Close() error {
	var err error
	for _, closer := range s.closers {
		err = multierr.Append(err, closer())
	}
	return err
}

func (s *Service) audit(ctx context.Context, logger *zap.Logger, runs []audit.Run) {
	if s.recorder == nil || len(runs) == 0 {
		return
	}
	if err := s.recorder.Record(ctx, runs); err != nil {
		logger.Warn("failed to record audit trail", zap.Error(err))
	}
}

// BatchKey identifies a batch by catalogue and contents. Migration is deterministic,
// so equal keys always produce equal archives.
func BatchKey(fingerprint string, files []batch.File) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%d\x00", fingerprint, len(files))
	for _, f := range files {
		fmt.Fprintf(h, "%s\x00%d\x00", f.Name, len(f.Data))
		h.Write(f.Data)
	}
	return "batch:" + hex.EncodeToString(h.Sum(nil))
}

func successRuns(batchID string, reports []batch.Report) []audit.Run {
	now := time.Now().UTC()
	runs := make([]audit.Run, len(reports))
	for i, r := range reports {
		runs[i] = audit.Run{
			BatchID:       batchID,
			Filename:      r.Filename,
			Kind:          r.Kind,
			SourceVersion: r.SourceVersion,
			TargetVersion: r.TargetVersion,
			Status:        audit.StatusMigrated,
			RecordedAt:    now,
		}
	}
	return runs
}

func failureRuns(batchID string, err error) []audit.Run {
	now := time.Now().UTC()
	var batchErr *migerr.BatchMigrationError
	if !errors.As(err, &batchErr) {
		return []audit.Run{{
			BatchID:    batchID,
			Status:     audit.StatusFailed,
			Code:       migerr.CodeOf(err),
			Message:    err.Error(),
			RecordedAt: now,
		}}
	}

	failures := batchErr.Failures()
	runs := make([]audit.Run, len(failures))
	for i, f := range failures {
		runs[i] = audit.Run{
			BatchID:    batchID,
			Filename:   f.Filename,
			Status:     audit.StatusFailed,
			Code:       f.Code,
			Message:    f.Message,
			RecordedAt: now,
		}
	}
	return runs
}

func toDocuments(files []batch.File) []storage.Document {
	docs := make([]storage.Document, len(files))
	for i, f := range files {
		docs[i] = storage.Document{Name: f.Name, Data: f.Data}
	}
	return docs
}
