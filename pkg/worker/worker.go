package worker

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/openbookcatalog/catalog/pkg/analytics"
	"github.com/openbookcatalog/catalog/pkg/books"
	"github.com/openbookcatalog/catalog/pkg/config"
	"github.com/openbookcatalog/catalog/pkg/errcodes"
	"github.com/openbookcatalog/catalog/pkg/joblogs"
	"github.com/openbookcatalog/catalog/pkg/jobs"
	"github.com/openbookcatalog/catalog/pkg/languages"
	"github.com/openbookcatalog/catalog/pkg/models"
	"github.com/openbookcatalog/catalog/pkg/tags"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/uptrace/bun"
)

var processID = randStringBytes(8)

// processFunc runs one maintenance job and returns the completion message.
// Returning an errcodes.JobFailure (or any other error) marks the job failed.
type processFunc func(ctx context.Context, job *models.Job, jl *joblogs.JobLogger) (string, error)

type statsFetcher interface {
	FetchBookStats(ctx context.Context) (analytics.Feed, error)
}

type Worker struct {
	config *config.Config
	log    logger.Logger

	processFuncs map[string]processFunc

	bookService     *books.Service
	jobService      *jobs.Service
	jobLogService   *joblogs.Service
	languageService *languages.Service
	tagService      *tags.Service
	statsFetcher    statsFetcher

	queue          chan *models.Job
	shutdown       chan struct{}
	doneFetching   chan struct{}
	doneProcessing chan struct{}
}

func New(cfg *config.Config, db *bun.DB, bookService *books.Service) *Worker {
	w := &Worker{
		config: cfg,
		log:    logger.New(),

		bookService:     bookService,
		jobService:      jobs.NewService(db),
		jobLogService:   joblogs.NewService(db),
		languageService: languages.NewService(db),
		tagService:      tags.NewService(db),
		statsFetcher:    analytics.NewClient(cfg),

		queue:          make(chan *models.Job, max(cfg.WorkerProcesses, 1)),
		shutdown:       make(chan struct{}),
		doneFetching:   make(chan struct{}),
		doneProcessing: make(chan struct{}, max(cfg.WorkerProcesses, 1)),
	}
	w.registerProcessFuncs()

	return w
}

func (w *Worker) registerProcessFuncs() {
	w.processFuncs = map[string]processFunc{
		models.JobTypeLanguageUsage:    w.ProcessLanguageUsageJob,
		models.JobTypeTagPrune:         w.ProcessTagPruneJob,
		models.JobTypeDefaultBackfill:  w.ProcessDefaultBackfillJob,
		models.JobTypeAnalyticsSync:    w.ProcessAnalyticsSyncJob,
		models.JobTypeResaveBooks:      w.ProcessResaveBooksJob,
		models.JobTypeArtifactLangTags: w.ProcessArtifactLangTagsJob,
		models.JobTypeAssignTag:        w.ProcessAssignTagJob,
	}
}

func (w *Worker) Start() {
	go w.fetchJobs()
	for i := 0; i < w.config.WorkerProcesses; i++ {
		go w.processJobs()
	}
}

func (w *Worker) fetchJobs() {
	duration := w.config.WorkerPollInterval
	if duration <= 0 {
		duration = 5 * time.Second
	}
	timer := time.NewTimer(duration)

	for {
		select {
		case <-w.shutdown:
			// We're shutting down, so stop adding more jobs to the queue.
			w.doneFetching <- struct{}{}
			return
		case <-timer.C:
			staleBefore := w.staleBefore()
			j, err := w.jobService.ListJobs(context.Background(), jobs.ListJobsOptions{
				Limit:              pointerutil.Int(1),
				ProcessIDToExclude: &processID,
				ClaimableBefore:    &staleBefore,
			})
			if err != nil {
				w.log.Err(err).Error("list jobs error")
				timer.Reset(duration)
				continue
			}
			for _, job := range j {
				select {
				case w.queue <- job:
				case <-w.shutdown:
				}
			}
			timer.Reset(duration)
		}
	}
}

func (w *Worker) processJobs() {
	for {
		select {
		case <-w.shutdown:
			w.doneProcessing <- struct{}{}
			return
		case job := <-w.queue:
			log := w.jobLog(job)
			ctx := log.WithContext(context.Background())

			claimed, err := w.jobService.ClaimJob(ctx, job, processID, w.staleBefore())
			if err != nil {
				log.Err(err).Error("claim job error")
				continue
			}
			if !claimed {
				continue
			}

			if err := w.RunJob(ctx, job); err != nil {
				log.Err(err).Error("process error")
			}
		}
	}
}

// staleBefore is the cutoff after which an in-progress job is considered
// orphaned by its process.
func (w *Worker) staleBefore() time.Time {
	timeout := w.config.WorkerStaleJobTimeout
	if timeout <= 0 {
		timeout = 6 * time.Hour
	}
	return time.Now().Add(-timeout)
}

func (w *Worker) jobLog(job *models.Job) logger.Logger {
	id, err := uuid.NewRandom()
	if err != nil {
		return w.log.Root(logger.Data{"job_id": job.ID, "type": job.Type, "process_id": processID})
	}
	return w.log.ID(id.String()).Root(logger.Data{"job_id": job.ID, "type": job.Type, "process_id": processID})
}

// Enqueue stores a new pending job. data may be nil.
func (w *Worker) Enqueue(ctx context.Context, jobType string, data any) (*models.Job, error) {
	if _, ok := w.processFuncs[jobType]; !ok {
		return nil, errcodes.ValidationError(fmt.Sprintf("Unknown job type %q.", jobType))
	}
	job := &models.Job{
		Type:       jobType,
		Status:     models.JobStatusPending,
		DataParsed: data,
	}
	if err := w.jobService.CreateJob(ctx, job); err != nil {
		return nil, errors.WithStack(err)
	}
	return job, nil
}

// RunNow claims the job for this process and runs it in the foreground.
func (w *Worker) RunNow(ctx context.Context, job *models.Job) error {
	claimed, err := w.jobService.ClaimJob(ctx, job, processID, w.staleBefore())
	if err != nil {
		return errors.WithStack(err)
	}
	if !claimed {
		return errcodes.Conflict("Job is already being processed.")
	}
	return w.RunJob(ctx, job)
}

// RunJob invokes the process function of an already claimed job and records
// the outcome on the job row. The returned error is the job's own failure.
func (w *Worker) RunJob(ctx context.Context, job *models.Job) (err error) {
	jl := w.jobLogService.NewJobLogger(ctx, job.ID, logger.FromContext(ctx))

	fn, ok := w.processFuncs[job.Type]
	if !ok {
		err = errcodes.JobFailed(job.Type, "No process function for job type.", nil)
		jl.Error("can't find process function for type", err, nil)
		return w.finish(ctx, job, "", err)
	}

	if job.DataParsed == nil {
		if uerr := job.UnmarshalData(); uerr != nil {
			err = errcodes.JobFailed(job.Type, "Job data is malformed.", uerr)
			jl.Error("invalid job data", uerr, nil)
			return w.finish(ctx, job, "", err)
		}
	}

	var msg string
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = errors.Errorf("panic: %v", r)
				jl.Fatal("job panicked", err, nil)
			}
		}()
		jl.Info("starting job", nil)
		msg, err = fn(ctx, job, jl)
	}()

	if err != nil {
		jl.Error("job terminated unsuccessfully", err, nil)
	} else {
		jl.Info(msg, nil)
	}
	return w.finish(ctx, job, msg, err)
}

func (w *Worker) finish(ctx context.Context, job *models.Job, msg string, runErr error) error {
	job.Status = models.JobStatusCompleted
	job.Progress = 100
	if runErr != nil {
		job.Status = models.JobStatusFailed
		msg = runErr.Error()
	}
	job.Message = &msg

	err := w.jobService.UpdateJob(ctx, job, jobs.UpdateJobOptions{
		Columns: []string{"status", "progress", "message"},
	})
	if err != nil {
		logger.FromContext(ctx).Err(err).Error("update job error")
	}
	return runErr
}

func (w *Worker) Shutdown() {
	close(w.shutdown)

	<-w.doneFetching
	for i := 0; i < w.config.WorkerProcesses; i++ {
		<-w.doneProcessing
	}
}

const letterBytes = "abcdef0123456789"

func randStringBytes(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letterBytes[rand.Intn(len(letterBytes))]
	}
	return string(b)
}
