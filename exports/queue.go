// Package exports is the persistent export job queue. Producers append jobs;
// a single consumer loop ticks through them one at a time.
package exports

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/drewmudry/captioncast/compositor"
	"github.com/drewmudry/captioncast/models"
	"github.com/drewmudry/captioncast/tasks"
	"github.com/drewmudry/captioncast/transcode"
)

var ErrInvalidJob = errors.New("invalid export job")

// MaxFPS caps the frame rate of an export.
const MaxFPS = 60

// ValidateRenderOptions checks options before a job is accepted, so bad
// input fails at submission rather than inside the consumer.
func ValidateRenderOptions(o models.RenderOptions) error {
	if o.FPS < 0 || o.FPS > MaxFPS {
		return fmt.Errorf("%w: fps %d not in 0..%d", ErrInvalidJob, o.FPS, MaxFPS)
	}
	if _, err := transcode.LookupContainer(o.Container); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}
	if err := compositor.FromRenderOptions(o).Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}
	return nil
}

// ProgressFunc reports job progress as a 0-100 percentage and a message.
type ProgressFunc func(percent int, message string)

// Runner produces the artifact for one job. The returned artifact is not
// yet saved.
type Runner interface {
	Run(ctx context.Context, job models.ExportJob, progress ProgressFunc) (*models.ExportArtifact, error)
}

// Publisher is told about job lifecycle changes.
type Publisher interface {
	Publish(ctx context.Context, ev tasks.ExportEvent) error
}

// Waker nudges an idle consumer after a job is enqueued.
type Waker interface {
	Wake(ctx context.Context, jobID uint) error
}

// Queue is the export job queue.
type Queue struct {
	store  Store
	runner Runner
	// Events and Waker are optional.
	Events Publisher
	Waker  Waker

	busy atomic.Bool
}

func NewQueue(store Store, runner Runner) *Queue {
	return &Queue{store: store, runner: runner}
}

// Enqueue appends a job with status queued and zero progress.
func (q *Queue) Enqueue(ctx context.Context, job models.ExportJob) (*models.ExportJob, error) {
	if strings.TrimSpace(job.Text) == "" && job.VideoSource == "" {
		return nil, fmt.Errorf("%w: text is empty", ErrInvalidJob)
	}
	if job.AudioSource == "" {
		return nil, fmt.Errorf("%w: no audio source", ErrInvalidJob)
	}
	if err := ValidateRenderOptions(job.RenderOptions); err != nil {
		return nil, err
	}
	job.ID = 0
	job.Status = models.ExportStatusQueued
	job.Progress = 0
	job.Message = "Queued"
	if err := q.store.CreateJob(ctx, &job); err != nil {
		return nil, fmt.Errorf("enqueue export: %w", err)
	}
	log.Printf("[exports] queued job %d (%s)", job.ID, job.Title)

	q.publish(ctx, tasks.ExportEvent{Type: tasks.EventQueued, JobID: job.ID, Title: job.Title, Status: job.Status})
	if q.Waker != nil {
		if err := q.Waker.Wake(ctx, job.ID); err != nil {
			log.Printf("[exports] wake consumer for job %d: %v", job.ID, err)
		}
	}
	return &job, nil
}

// List returns every job still in the queue, including failed ones.
func (q *Queue) List(ctx context.Context) ([]models.ExportJob, error) {
	return q.store.ListJobs(ctx)
}

// Remove drops a queued or failed job. A processing job cannot be removed.
func (q *Queue) Remove(ctx context.Context, id uint) error {
	if err := q.store.DeleteJob(ctx, id); err != nil {
		return err
	}
	q.publish(ctx, tasks.ExportEvent{Type: tasks.EventRemoved, JobID: id})
	return nil
}

// Tick processes at most one job. It returns false without doing anything
// when another tick is running or nothing is runnable. A job that fails is
// marked as error; only store failures are returned.
func (q *Queue) Tick(ctx context.Context) (bool, error) {
	if !q.busy.CompareAndSwap(false, true) {
		return false, nil
	}
	defer q.busy.Store(false)

	job, err := q.store.NextRunnable(ctx)
	if err != nil {
		return false, fmt.Errorf("select next export: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if job.Status != models.ExportStatusProcessing {
		if err := q.store.MarkProcessing(ctx, job.ID); err != nil {
			if errors.Is(err, ErrJobNotFound) || errors.Is(err, ErrJobNotRunnable) {
				// removed or changed since it was selected
				log.Printf("[exports] job %d no longer runnable: %v", job.ID, err)
				return false, nil
			}
			return false, fmt.Errorf("start export %d: %w", job.ID, err)
		}
		job.Status = models.ExportStatusProcessing
	} else {
		log.Printf("[exports] resuming interrupted job %d", job.ID)
	}
	q.publish(ctx, tasks.ExportEvent{Type: tasks.EventStarted, JobID: job.ID, Title: job.Title, Status: job.Status})

	tracker := &progressTracker{queue: q, ctx: ctx, job: job, last: -1}
	artifact, runErr := q.run(ctx, *job, tracker.report)
	if runErr != nil {
		msg := runErr.Error()
		if msg == "" {
			msg = "export failed"
		}
		log.Printf("[exports] job %d failed: %s", job.ID, msg)
		if err := q.store.MarkError(ctx, job.ID, msg); err != nil {
			return true, fmt.Errorf("mark export %d failed: %w", job.ID, err)
		}
		q.publish(ctx, tasks.ExportEvent{Type: tasks.EventFailed, JobID: job.ID, Title: job.Title, Status: models.ExportStatusError, Progress: max(tracker.last, 0), Message: msg})
		return true, nil
	}

	if artifact.Timestamp == 0 {
		artifact.Timestamp = time.Now().UnixMilli()
	}
	if err := q.store.Complete(ctx, job.ID, artifact); err != nil {
		msg := fmt.Sprintf("save artifact: %v", err)
		if markErr := q.store.MarkError(ctx, job.ID, msg); markErr != nil {
			log.Printf("[exports] mark export %d failed: %v", job.ID, markErr)
		}
		return true, fmt.Errorf("complete export %d: %w", job.ID, err)
	}
	log.Printf("[exports] job %d complete: artifact %d (%s)", job.ID, artifact.ID, artifact.Filename)
	q.publish(ctx, tasks.ExportEvent{Type: tasks.EventCompleted, JobID: job.ID, Title: job.Title, Progress: 100, ArtifactID: artifact.ID})
	return true, nil
}

// run calls the runner, turning a panic into a job error so the consumer
// loop survives it.
func (q *Queue) run(ctx context.Context, job models.ExportJob, progress ProgressFunc) (artifact *models.ExportArtifact, err error) {
	defer func() {
		if r := recover(); r != nil {
			artifact = nil
			err = fmt.Errorf("export crashed: %v", r)
		}
	}()
	artifact, err = q.runner.Run(ctx, job, progress)
	if err == nil && artifact == nil {
		err = errors.New("export produced no artifact")
	}
	return artifact, err
}

// Run ticks until ctx is done, waiting on sched between ticks whatever the
// outcome of the previous one.
func (q *Queue) Run(ctx context.Context, sched Scheduler) error {
	log.Println("[exports] consumer started")
	for {
		if _, err := q.Tick(ctx); err != nil {
			log.Printf("[exports] tick: %v", err)
		}
		if err := sched.Wait(ctx); err != nil {
			log.Println("[exports] consumer stopped")
			return err
		}
	}
}

func (q *Queue) publish(ctx context.Context, ev tasks.ExportEvent) {
	if q.Events == nil {
		return
	}
	ev.Time = time.Now()
	if err := q.Events.Publish(ctx, ev); err != nil {
		log.Printf("[exports] publish %s for job %d: %v", ev.Type, ev.JobID, err)
	}
}

// progressTracker persists progress only when the percentage or the
// message changes.
type progressTracker struct {
	queue   *Queue
	ctx     context.Context
	job     *models.ExportJob
	last    int
	lastMsg string
}

func (t *progressTracker) report(percent int, message string) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if percent == t.last && message == t.lastMsg {
		return
	}
	t.last, t.lastMsg = percent, message
	if err := t.queue.store.UpdateProgress(t.ctx, t.job.ID, percent, message); err != nil {
		log.Printf("[exports] progress for job %d: %v", t.job.ID, err)
		return
	}
	t.queue.publish(t.ctx, tasks.ExportEvent{
		Type:     tasks.EventProgress,
		JobID:    t.job.ID,
		Status:   models.ExportStatusProcessing,
		Progress: percent,
		Message:  message,
	})
}
