// Package engine runs the long-lived archive workflows: export, import, and
// storage migration. Each workflow is started by allocating a job and
// returning its id immediately; the work proceeds on its own goroutine and
// reports progress through the job store. Cancellation is cooperative and
// checked once per photo.
package engine

import (
	"context"
	"strings"
	"unicode"

	"photark/internal/archive"
	"photark/internal/job"
	"photark/internal/storage"
)

// Engine coordinates the document store, the storage manager, and the job
// store to run migration workflows.
type Engine struct {
	docs    archive.DocumentStore
	storage *storage.Manager
	jobs    *job.Store
	logger  archive.Logger
	clock   archive.Clock
	idgen   archive.IDGenerator

	// baseDir confines caller-supplied export destinations and import
	// sources; paths resolving outside it are rejected before any I/O.
	baseDir string

	// bundleRecipient, when set, is an age recipient used to encrypt export
	// bundles.
	bundleRecipient string
}

// Options configures an Engine.
type Options struct {
	BaseDir         string
	BundleRecipient string
	Logger          archive.Logger
	Clock           archive.Clock
	IDGen           archive.IDGenerator
}

// New creates an Engine.
func New(docs archive.DocumentStore, storageMgr *storage.Manager, jobs *job.Store, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = archive.NewNopLogger()
	}
	if opts.Clock == nil {
		opts.Clock = archive.RealClock{}
	}
	if opts.IDGen == nil {
		opts.IDGen = archive.UUIDGenerator{}
	}
	return &Engine{
		docs:            docs,
		storage:         storageMgr,
		jobs:            jobs,
		logger:          opts.Logger,
		clock:           opts.Clock,
		idgen:           opts.IDGen,
		baseDir:         opts.BaseDir,
		bundleRecipient: opts.BundleRecipient,
	}
}

// Jobs exposes the job store for status polling and cancellation.
func (e *Engine) Jobs() *job.Store { return e.jobs }

// newJob allocates a pending job record and returns its id.
func (e *Engine) newJob(kind job.Kind) string {
	id := e.idgen.New()
	e.jobs.Create(&job.Job{ID: id, Kind: kind})
	return id
}

// fail transitions a job to failed with the given error. Used for failures
// before any per-photo work begins; per-photo failures are counted instead.
func (e *Engine) fail(jobID string, err error) {
	e.logger.Error("job failed", "job", jobID, "error", err)
	e.jobs.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusFailed
		j.Error = err.Error()
	})
}

// checkCancelled polls the cooperative cancellation flag. When set, the job
// is transitioned to cancelled and true is returned so the workflow stops
// scheduling further photos.
func (e *Engine) checkCancelled(jobID string) bool {
	if !e.jobs.IsCancelled(jobID) {
		return false
	}
	e.logger.Info("job cancelled", "job", jobID)
	e.jobs.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusCancelled
	})
	return true
}

// step records one processed unit of work.
func (e *Engine) step(jobID, currentItem string) {
	e.jobs.Update(jobID, func(j *job.Job) {
		j.Progress++
		j.CurrentItem = currentItem
	})
}

// slugify derives a URL-safe alias from a display name: lowercase
// alphanumerics with runs of everything else collapsed to single dashes.
func slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) && r < 128 || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastDash = false
		} else if !lastDash {
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// background returns the context workflows run under. Jobs deliberately have
// no deadline; a stuck backend call stalls its job until the backend's own
// client times out.
func (e *Engine) background() context.Context {
	return context.Background()
}
