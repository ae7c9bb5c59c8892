// Package ingest converts filesystem change notifications into a
// bounded, priority-ordered, retried work queue feeding the
// transformation pipeline.
package ingest

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/tessera-search/tessera/internal/config"
	"github.com/tessera-search/tessera/internal/pipeline"
)

// completedHistory bounds the retained completed-document list.
const completedHistory = 200

// statsSnapshotEvery is how often a stats snapshot event is published.
const statsSnapshotEvery = 15 * time.Second

// abortWait bounds how long drain waits for jobs it has cancelled past
// the grace period.
const abortWait = 2 * time.Second

// Runner executes the transformation pipeline for one document.
// *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, path string, onStage pipeline.StageFunc) (*pipeline.IndexedDocument, error)
}

// Queue is the ingestion orchestrator. All mutable queue state lives
// behind q.mu; jobs run on their own goroutines bounded by the
// configured concurrency cap.
type Queue struct {
	cfg          config.QueueConfig
	runner       Runner
	bus          *Bus
	fingerprints *FingerprintCache
	policy       *Policy
	webhooks     *WebhookNotifier

	mu         sync.Mutex
	pending    []*QueuedDocument
	processing map[string]*ProcessingJob
	completed  []CompletedDocument
	failed     map[string]*FailedDocument
	stats      Stats
	draining   bool

	jobs sync.WaitGroup
	rng  *rand.Rand
}

// NewQueue creates the ingestion queue. policy may be nil to accept
// every path handed to Enqueue.
func NewQueue(cfg config.QueueConfig, runner Runner, fingerprints *FingerprintCache, policy *Policy, bus *Bus) *Queue {
	return &Queue{
		cfg:          cfg,
		runner:       runner,
		bus:          bus,
		fingerprints: fingerprints,
		policy:       policy,
		webhooks:     NewWebhookNotifier(cfg.WebhookURLs),
		processing:   make(map[string]*ProcessingJob),
		failed:       make(map[string]*FailedDocument),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Bus returns the queue's event bus.
func (q *Queue) Bus() *Bus { return q.bus }

// Enqueue admits a path into the pending queue. Files failing the
// admission policy or the duplicate-change check produce a skip event,
// not an error.
func (q *Queue) Enqueue(path string, change ChangeKind, priority Priority) {
	q.mu.Lock()
	draining := q.draining
	q.mu.Unlock()
	if draining {
		q.skip(path, "shutting down")
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		// Moved or deleted before we got to it.
		q.fingerprints.Forget(path)
		q.skip(path, "file not accessible")
		return
	}

	if q.policy != nil {
		if ok, reason := q.policy.Admit(path, info.Size()); !ok {
			q.skip(path, reason)
			return
		}
	}

	// Duplicate-change suppression against the persisted fingerprints.
	if change == ChangeChanged && q.cfg.DedupEnabled && q.fingerprints.Unchanged(path, info) {
		q.skip(path, "content unchanged")
		return
	}

	docID := pipeline.DocumentID(path)

	q.mu.Lock()
	defer q.mu.Unlock()

	// One pending entry per document id; a repeat event refreshes it.
	for _, d := range q.pending {
		if d.ID == docID {
			if priority > d.Priority {
				d.Priority = priority
			}
			d.Change = change
			d.Size = info.Size()
			return
		}
	}

	// Capacity bound: evict the lowest-priority pending item first.
	if len(q.pending) >= q.cfg.Capacity {
		q.evictLowestLocked()
	}

	q.pending = append(q.pending, &QueuedDocument{
		ID:         docID,
		Path:       path,
		DetectedAt: time.Now(),
		Size:       info.Size(),
		Priority:   priority,
		Change:     change,
	})
	q.stats.Enqueued++
	q.bus.Publish(Event{Type: EventDocumentQueued, DocumentID: docID, Path: path})
}

func (q *Queue) skip(path, reason string) {
	q.mu.Lock()
	q.stats.Skipped++
	q.mu.Unlock()
	q.bus.Publish(Event{Type: EventDocumentSkipped, Path: path, Reason: reason})
}

// evictLowestLocked drops the lowest-priority (then youngest) pending
// item and publishes a document_dropped event. Caller holds q.mu.
func (q *Queue) evictLowestLocked() {
	if len(q.pending) == 0 {
		return
	}
	victim := 0
	for i, d := range q.pending {
		v := q.pending[victim]
		if d.Priority < v.Priority || (d.Priority == v.Priority && d.DetectedAt.After(v.DetectedAt)) {
			victim = i
		}
	}
	dropped := q.pending[victim]
	q.pending = append(q.pending[:victim], q.pending[victim+1:]...)
	q.stats.Dropped++
	q.bus.Publish(Event{Type: EventDocumentDropped, DocumentID: dropped.ID, Path: dropped.Path, Reason: "queue full"})
}

// Run drives the dispatch loop on a fixed tick until ctx is done, then
// drains in-flight jobs within the configured grace period. Jobs run on
// a context detached from ctx so shutdown does not abort them mid-run;
// drain cancels it only once the grace period expires.
func (q *Queue) Run(ctx context.Context) {
	tick := time.Duration(q.cfg.DispatchTickMS) * time.Millisecond
	if tick <= 0 {
		tick = 500 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	snapshot := time.NewTicker(statsSnapshotEvery)
	defer snapshot.Stop()

	jobCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelJobs()

	for {
		select {
		case <-ctx.Done():
			q.drain(cancelJobs)
			return
		case <-ticker.C:
			q.dispatch(jobCtx)
		case <-snapshot.C:
			stats := q.Snapshot()
			q.bus.Publish(Event{Type: EventStatsSnapshot, Stats: &stats})
		}
	}
}

// dispatch starts jobs while capacity allows, picking the
// highest-priority, then oldest, pending item whose document id is not
// already processing.
func (q *Queue) dispatch(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.processing) < q.cfg.MaxConcurrentJobs {
		idx := q.nextPendingLocked()
		if idx < 0 {
			return
		}
		doc := q.pending[idx]
		q.pending = append(q.pending[:idx], q.pending[idx+1:]...)

		job := &ProcessingJob{Doc: *doc, Stage: "queued", StartedAt: time.Now()}
		q.processing[doc.ID] = job

		q.jobs.Add(1)
		go q.runJob(ctx, job)
	}
}

// nextPendingLocked returns the index of the best dispatchable pending
// item, or -1. Caller holds q.mu.
func (q *Queue) nextPendingLocked() int {
	best := -1
	for i, d := range q.pending {
		if _, busy := q.processing[d.ID]; busy {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		b := q.pending[best]
		if d.Priority > b.Priority || (d.Priority == b.Priority && d.DetectedAt.Before(b.DetectedAt)) {
			best = i
		}
	}
	return best
}

func (q *Queue) runJob(ctx context.Context, job *ProcessingJob) {
	defer q.jobs.Done()

	doc := job.Doc
	q.bus.Publish(Event{Type: EventJobStarted, DocumentID: doc.ID, Path: doc.Path})

	onStage := func(stage string, percent float64) {
		q.mu.Lock()
		if j, ok := q.processing[doc.ID]; ok {
			j.Stage = stage
			j.Percent = percent
		}
		q.mu.Unlock()
		q.bus.Publish(Event{Type: EventStageCompleted, DocumentID: doc.ID, Path: doc.Path, Stage: stage, Percent: percent})
	}

	result, err := q.runner.Run(ctx, doc.Path, onStage)

	q.mu.Lock()
	delete(q.processing, doc.ID)
	q.mu.Unlock()

	if err != nil {
		q.handleFailure(doc, err)
		return
	}
	q.handleSuccess(doc, job.StartedAt, result)
}

func (q *Queue) handleSuccess(doc QueuedDocument, startedAt time.Time, result *pipeline.IndexedDocument) {
	duration := time.Since(startedAt)

	if info, err := os.Stat(doc.Path); err == nil {
		q.fingerprints.Remember(doc.Path, info)
		if err := q.fingerprints.Save(); err != nil {
			log.Printf("queue: saving fingerprints: %v", err)
		}
	}

	q.mu.Lock()
	q.stats.Completed++
	q.stats.AvgDurationMS += (float64(duration.Milliseconds()) - q.stats.AvgDurationMS) / float64(q.stats.Completed)
	q.stats.TotalNodes += int64(result.Stats.TotalNodes)
	q.stats.TotalImages += int64(result.Stats.ImageNodes)
	delete(q.failed, doc.ID)

	q.completed = append(q.completed, CompletedDocument{
		DocumentID:   doc.ID,
		Path:         doc.Path,
		CompletedAt:  time.Now(),
		Duration:     duration,
		QualityScore: result.QualityScore,
		Nodes:        result.Stats.TotalNodes,
		Images:       result.Stats.ImageNodes,
	})
	if len(q.completed) > completedHistory {
		q.completed = q.completed[len(q.completed)-completedHistory:]
	}
	q.mu.Unlock()

	q.bus.Publish(Event{Type: EventJobCompleted, DocumentID: doc.ID, Path: doc.Path})
}

func (q *Queue) handleFailure(doc QueuedDocument, err error) {
	if doc.RetryCount < q.cfg.MaxRetries {
		delay := q.retryDelay(doc.RetryCount)
		q.mu.Lock()
		q.stats.Retried++
		q.mu.Unlock()
		q.bus.Publish(Event{
			Type:       EventJobRetry,
			DocumentID: doc.ID,
			Path:       doc.Path,
			Error:      err.Error(),
			RetryCount: doc.RetryCount + 1,
		})
		log.Printf("queue: %s failed (attempt %d), retrying in %s: %v", doc.Path, doc.RetryCount+1, delay, err)

		time.AfterFunc(delay, func() {
			q.requeue(doc)
		})
		return
	}

	failed := &FailedDocument{
		DocumentID: doc.ID,
		Path:       doc.Path,
		LastError:  err.Error(),
		RetryCount: doc.RetryCount,
		FailedAt:   time.Now(),
	}

	q.mu.Lock()
	q.stats.Failed++
	q.failed[doc.ID] = failed
	q.mu.Unlock()

	q.bus.Publish(Event{
		Type:       EventJobFailed,
		DocumentID: doc.ID,
		Path:       doc.Path,
		Error:      err.Error(),
		RetryCount: doc.RetryCount,
	})
	q.webhooks.NotifyFailure(context.Background(), *failed)
	log.Printf("queue: %s failed permanently after %d retries: %v", doc.Path, doc.RetryCount, err)
}

// retryDelay is linear in the retry count by default; with jitter
// enabled it becomes exponential with a randomized half-window, which
// avoids synchronized retry storms under bursty failure.
func (q *Queue) retryDelay(retryCount int) time.Duration {
	base := time.Duration(q.cfg.RetryDelayMS) * time.Millisecond
	if base <= 0 {
		base = 5 * time.Second
	}
	if !q.cfg.BackoffJitter {
		return base * time.Duration(retryCount+1)
	}
	backoff := base << retryCount
	q.mu.Lock()
	factor := 0.5 + q.rng.Float64()/2
	q.mu.Unlock()
	return time.Duration(float64(backoff) * factor)
}

// requeue puts a failed document back on the pending queue with
// boosted priority.
func (q *Queue) requeue(doc QueuedDocument) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.draining {
		return
	}

	priority := doc.Priority
	if priority < PriorityHigh {
		priority = PriorityHigh
	}

	if len(q.pending) >= q.cfg.Capacity {
		q.evictLowestLocked()
	}
	q.pending = append(q.pending, &QueuedDocument{
		ID:         doc.ID,
		Path:       doc.Path,
		DetectedAt: time.Now(),
		Size:       doc.Size,
		Priority:   priority,
		RetryCount: doc.RetryCount + 1,
		Change:     doc.Change,
	})
}

// drain stops admissions, waits up to the grace period for in-flight
// jobs, then persists the fingerprint cache. Only jobs still running
// past the deadline get their context cancelled; reprocessing is
// idempotent per node id so their partial writes are harmless.
func (q *Queue) drain(cancelJobs context.CancelFunc) {
	q.mu.Lock()
	q.draining = true
	active := len(q.processing)
	q.mu.Unlock()

	grace := time.Duration(q.cfg.ShutdownGraceSec) * time.Second
	if grace <= 0 {
		grace = 30 * time.Second
	}

	done := make(chan struct{})
	go func() {
		q.jobs.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		q.mu.Lock()
		for id, job := range q.processing {
			log.Printf("queue: abandoning job %s (%s) still in stage %s", id, job.Doc.Path, job.Stage)
		}
		q.mu.Unlock()
		cancelJobs()
		select {
		case <-done:
		case <-time.After(abortWait):
		}
	}

	if err := q.fingerprints.Save(); err != nil {
		log.Printf("queue: saving fingerprints on shutdown: %v", err)
	}
	log.Printf("queue: drained (%d jobs were active)", active)
}

// Snapshot returns a copy of the rolling statistics.
func (q *Queue) Snapshot() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

// Status reports current queue state for the status API.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs := make([]ProcessingJob, 0, len(q.processing))
	for _, j := range q.processing {
		jobs = append(jobs, *j)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].StartedAt.Before(jobs[j].StartedAt) })

	return Status{
		Pending:    len(q.pending),
		Active:     len(q.processing),
		FailedDocs: len(q.failed),
		Jobs:       jobs,
		Stats:      q.stats,
	}
}

// Completed returns the retained completed-document records, newest last.
func (q *Queue) Completed() []CompletedDocument {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]CompletedDocument, len(q.completed))
	copy(out, q.completed)
	return out
}

// Failed returns the permanently failed documents.
func (q *Queue) Failed() []FailedDocument {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]FailedDocument, 0, len(q.failed))
	for _, f := range q.failed {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FailedAt.Before(out[j].FailedAt) })
	return out
}

// RetryFailed re-enqueues a permanently failed document with a fresh
// retry budget and high priority.
func (q *Queue) RetryFailed(documentID string) error {
	q.mu.Lock()
	failed, ok := q.failed[documentID]
	if !ok {
		q.mu.Unlock()
		return fmt.Errorf("no failed document %s", documentID)
	}
	delete(q.failed, documentID)
	q.mu.Unlock()

	// ChangeAdded bypasses duplicate suppression; a manual retry must
	// always run even when the file content has not changed.
	q.Enqueue(failed.Path, ChangeAdded, PriorityHigh)
	return nil
}

// ClearFailed removes a failed record without retrying it.
func (q *Queue) ClearFailed(documentID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.failed[documentID]; !ok {
		return fmt.Errorf("no failed document %s", documentID)
	}
	delete(q.failed, documentID)
	return nil
}
