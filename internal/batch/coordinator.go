// Package batch migrates sets of related documents submitted together.
//
// Documents are grouped into tiers by the reference graph of their kinds. A tier
// starts only after every earlier tier finished and the identifiers its documents
// recorded were merged into the cross-reference index. Documents within a tier are
// independent and run concurrently.
package batch

import (
	"errors"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/conduit-lang/modelmig/internal/codec"
	"github.com/conduit-lang/modelmig/internal/metamodel"
	"github.com/conduit-lang/modelmig/internal/migerr"
	"github.com/conduit-lang/modelmig/internal/pipeline"
	"github.com/conduit-lang/modelmig/internal/tree"
)

// File is one named document of a batch
type File struct {
	Name string
	Data []byte
}

// Report describes what happened to one document
type Report struct {
	Filename      string `json:"filename"`
	Kind          string `json:"kind"`
	SourceVersion string `json:"source_version"`
	TargetVersion string `json:"target_version"`
	Tier          int    `json:"tier"`
	Steps         int    `json:"steps"`
	Noop          bool   `json:"noop"`
}

// Outcome is a fully migrated batch
type Outcome struct {
	// Files holds one migrated file per input, in tier order then input order
	Files []File
	// Reports is parallel to Files
	Reports []Report
}

// Coordinator migrates batches against a registry
type Coordinator struct {
	registry *metamodel.Registry
	executor *pipeline.Executor
	logger   *zap.Logger
	workers  int
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithWorkers bounds the documents migrated concurrently within a tier.
// Values below one use GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *Coordinator) {
		c.workers = n
	}
}

// NewCoordinator creates a new batch coordinator
func NewCoordinator(registry *metamodel.Registry, opts ...Option) *Coordinator {
	c := &Coordinator{
		registry: registry,
		executor: pipeline.NewExecutor(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.workers < 1 {
		c.workers = runtime.GOMAXPROCS(0)
	}
	return c
}

// job tracks one document through the batch
type job struct {
	pos      int
	file     File
	doc      *tree.Document
	pipeline *metamodel.Pipeline
	tier     int
	result   *pipeline.Result
	err      error
}

// MigrateBatch migrates every file of the batch. Either all files are migrated or a
// *migerr.BatchMigrationError reports every document that failed.
func (c *Coordinator) MigrateBatch(files []File) (*Outcome, error) {
	start := time.Now()
	c.logger.Info("migrating batch", zap.Int("documents", len(files)))

	if err := checkDuplicates(files); err != nil {
		c.logger.Warn("batch rejected", zap.Error(err))
		return nil, err
	}

	jobs := make([]*job, len(files))
	for i, f := range files {
		jobs[i] = c.prepare(i, f)
	}

	// A failed document contributes no mappings, so references to it from later
	// tiers surface as unresolved references of the referencing document.
	index := NewIndex()
	for tier, kinds := range c.registry.Tiers() {
		var pending []*job
		for _, j := range jobs {
			if j.err == nil && j.tier == tier {
				pending = append(pending, j)
			}
		}

		c.runTier(tier, pending, index)

		for _, j := range pending {
			if j.err == nil {
				index.Add(j.result.Mappings...)
			}
		}
		c.logger.Debug("tier finished",
			zap.Int("tier", tier),
			zap.Strings("kinds", kinds),
			zap.Int("documents", len(pending)),
			zap.Int("index_entries", index.Len()))
	}

	var errs []error
	for _, j := range jobs {
		if j.err != nil {
			c.logger.Warn("document failed",
				zap.String("file", j.file.Name),
				zap.String("code", migerr.CodeOf(j.err)),
				zap.Error(j.err))
			errs = append(errs, j.err)
		}
	}
	if err := migerr.NewBatchMigrationError(errs); err != nil {
		c.logger.Warn("batch failed", zap.Int("failures", len(errs)), zap.Duration("duration", time.Since(start)))
		return nil, err
	}

	outcome := c.collect(jobs)
	c.logger.Info("batch migrated",
		zap.Int("documents", len(outcome.Files)),
		zap.Duration("duration", time.Since(start)))
	return outcome, nil
}

// prepare parses a file and resolves its pipeline. Failures are kept on the job.
func (c *Coordinator) prepare(pos int, f File) *job {
	j := &job{pos: pos, file: f}

	doc, err := codec.Parse(f.Name, f.Data, c.registry)
	if err != nil {
		j.err = err
		return j
	}
	j.doc = doc

	if doc.Kind == "" {
		j.err = &migerr.UnknownSchemaError{Filename: f.Name, Namespace: doc.Namespace, Version: doc.Version}
		return j
	}

	p, err := c.registry.ResolvePipeline(doc.Kind, doc.Namespace, doc.Version)
	if err != nil {
		var unknown *migerr.UnknownSchemaError
		if errors.As(err, &unknown) {
			unknown.Filename = f.Name
		}
		j.err = err
		return j
	}
	j.pipeline = p

	tier, ok := c.registry.TierOf(doc.Kind)
	if !ok {
		j.err = &migerr.UnknownSchemaError{Filename: f.Name, Kind: doc.Kind, Namespace: doc.Namespace, Version: doc.Version}
		return j
	}
	j.tier = tier
	return j
}

// runTier migrates the documents of one tier concurrently. Workers only write
// their own job, and the index is not modified until every worker returned.
func (c *Coordinator) runTier(tier int, pending []*job, index *Index) {
	var g errgroup.Group
	g.SetLimit(c.workers)
	for _, j := range pending {
		g.Go(func() error {
			j.result, j.err = c.executor.Run(j.doc, j.pipeline, index)
			if j.err == nil {
				c.logger.Debug("document migrated",
					zap.String("file", j.file.Name),
					zap.String("kind", j.doc.Kind),
					zap.Int("tier", tier),
					zap.Int("steps", j.result.Applied),
					zap.Bool("noop", j.result.Noop))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// collect serializes the migrated documents in tier order, then input order
func (c *Coordinator) collect(jobs []*job) *Outcome {
	outcome := &Outcome{}
	for tier := range c.registry.Tiers() {
		for _, j := range jobs {
			if j.tier != tier {
				continue
			}
			outcome.Files = append(outcome.Files, File{
				Name: j.file.Name,
				Data: codec.Serialize(j.result.Document),
			})
			outcome.Reports = append(outcome.Reports, Report{
				Filename:      j.file.Name,
				Kind:          j.doc.Kind,
				SourceVersion: j.doc.Version,
				TargetVersion: j.pipeline.TargetVersion,
				Tier:          tier,
				Steps:         j.result.Applied,
				Noop:          j.result.Noop,
			})
		}
	}
	return outcome
}

func checkDuplicates(files []File) error {
	counts := make(map[string]int, len(files))
	for _, f := range files {
		counts[f.Name]++
	}

	var errs []error
	seen := make(map[string]bool, len(counts))
	for _, f := range files {
		if counts[f.Name] > 1 && !seen[f.Name] {
			seen[f.Name] = true
			errs = append(errs, &migerr.DuplicateDocumentError{Filename: f.Name, Count: counts[f.Name]})
		}
	}
	return migerr.NewBatchMigrationError(errs)
}
