package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gould-simon/ai-accounting-job-matching/internal/apperror"
	"github.com/gould-simon/ai-accounting-job-matching/internal/model"
)

// fakeCatalog implements CatalogReader over a fixed slice of jobs.
type fakeCatalog struct {
	mu   sync.Mutex
	jobs map[int64]model.Job
}

func newFakeCatalog(jobs ...model.Job) *fakeCatalog {
	c := &fakeCatalog{jobs: make(map[int64]model.Job)}
	for _, j := range jobs {
		c.jobs[j.ID] = j
	}
	return c
}

func (c *fakeCatalog) put(j model.Job) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs[j.ID] = j
}

func (c *fakeCatalog) remove(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.jobs, id)
}

func (c *fakeCatalog) ListChangedSince(ctx context.Context, watermark time.Time, limit int) ([]model.Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.Job
	for _, j := range c.jobs {
		if j.UpdatedAt.After(watermark) {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *fakeCatalog) Get(ctx context.Context, jobID int64) (*model.Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	j, ok := c.jobs[jobID]
	if !ok {
		return nil, nil
	}
	return &j, nil
}

func catalogJob(id int64, title string, updatedAt time.Time) model.Job {
	return model.Job{
		ID:        id,
		JobTitle:  title,
		Service:   "Audit",
		Location:  "London",
		IsIndexed: true,
		UpdatedAt: updatedAt,
	}
}

func newTestRefreshUsecase(catalog *fakeCatalog, store *fakeStore, embedder Embedder) *RefreshUsecase {
	return NewRefreshUsecase(catalog, store, embedder, "ada-002", 100, zap.NewNop())
}

func TestRunEmbedsNewJobs(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	catalog := newFakeCatalog(
		catalogJob(1, "Audit Senior", base.Add(1*time.Hour)),
		catalogJob(2, "Tax Manager", base.Add(2*time.Hour)),
	)
	store := newFakeStore()
	embedder := &fakeEmbedder{vec: []float32{1, 0}}
	uc := newTestRefreshUsecase(catalog, store, embedder)

	next, stats, err := uc.Run(context.Background(), base)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Attempted)
	assert.Equal(t, 2, stats.Succeeded)
	assert.Zero(t, stats.Failed)
	assert.True(t, next.Equal(base.Add(2*time.Hour)))

	e, err := store.GetByJobID(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, e)
	job := catalog.jobs[1]
	assert.Equal(t, job.ContentHash(), e.ContentHash)
	assert.Equal(t, "ada-002", e.ModelVersion)
	assert.False(t, e.Stale)
}

func TestRunSkipsUnchangedContent(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	job := catalogJob(1, "Audit Senior", base.Add(1*time.Hour))
	catalog := newFakeCatalog(job, catalogJob(2, "Tax Manager", base.Add(2*time.Hour)))

	store := newFakeStore()
	// Job 1 already has a fresh embedding with a matching content hash; only
	// its updated_at moved (e.g. a non-embedded column changed).
	require.NoError(t, store.Upsert(context.Background(), 1, []float32{1, 0}, job.ContentHash(), "ada-002"))

	embedder := &fakeEmbedder{vec: []float32{0, 1}}
	uc := newTestRefreshUsecase(catalog, store, embedder)

	_, stats, err := uc.Run(context.Background(), base)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Attempted)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Succeeded)
	assert.Equal(t, 1, embedder.calls)
}

func TestRunIsIdempotent(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	catalog := newFakeCatalog(catalogJob(1, "Audit Senior", base.Add(1*time.Hour)))
	store := newFakeStore()
	embedder := &fakeEmbedder{vec: []float32{1, 0}}
	uc := newTestRefreshUsecase(catalog, store, embedder)

	next, _, err := uc.Run(context.Background(), base)
	require.NoError(t, err)

	// Second run from the advanced watermark sees nothing to do.
	next2, stats, err := uc.Run(context.Background(), next)
	require.NoError(t, err)
	assert.True(t, next2.Equal(next))
	assert.Zero(t, stats.Attempted)
	assert.Equal(t, 1, embedder.calls)
}

func TestRunFailureParksWatermark(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	var jobs []model.Job
	for i := int64(1); i <= 5; i++ {
		jobs = append(jobs, catalogJob(i, "Audit Senior", base.Add(time.Duration(i)*time.Hour)))
	}
	catalog := newFakeCatalog(jobs...)
	store := newFakeStore()
	embedder := &fakeEmbedder{err: fmt.Errorf("%w: provider outage", apperror.ErrEmbeddingGeneration)}
	uc := newTestRefreshUsecase(catalog, store, embedder)

	next, stats, err := uc.Run(context.Background(), base)
	require.NoError(t, err)

	// Every job failed, so the cursor must not move: the next run retries
	// the same batch.
	assert.True(t, next.Equal(base))
	assert.Equal(t, 5, stats.Failed)
	assert.Zero(t, stats.Succeeded)
}

func TestRunAdvancesAcrossCleanPrefixOnly(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	jobs := []model.Job{
		catalogJob(1, "Audit Senior", base.Add(1*time.Hour)),
		catalogJob(2, "Tax Manager", base.Add(2*time.Hour)),
		catalogJob(3, "CFO", base.Add(3*time.Hour)),
	}
	catalog := newFakeCatalog(jobs...)
	store := newFakeStore()

	// Fail only the second embed call, then recover for job 3.
	embedder := &failNthEmbedder{vec: []float32{1, 0}, failOn: 2}
	uc := newTestRefreshUsecase(catalog, store, embedder)

	next, stats, err := uc.Run(context.Background(), base)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Succeeded)
	assert.Equal(t, 1, stats.Failed)
	// Clean prefix ends at job 1; job 3's success after the failure must not
	// drag the cursor past the failed job.
	assert.True(t, next.Equal(base.Add(1*time.Hour)))

	// Job 3 was still embedded despite the hole.
	e, err := store.GetByJobID(context.Background(), 3)
	require.NoError(t, err)
	assert.NotNil(t, e)
}

func TestRunFailureOnSharedTimestampKeepsJobEligible(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	// Both jobs carry the same updated_at, as a batch import produces. Job 1
	// embeds cleanly, job 2's embed fails.
	catalog := newFakeCatalog(
		catalogJob(1, "Audit Senior", base.Add(1*time.Hour)),
		catalogJob(2, "Tax Manager", base.Add(1*time.Hour)),
	)
	store := newFakeStore()
	embedder := &failNthEmbedder{vec: []float32{1, 0}, failOn: 2}
	uc := newTestRefreshUsecase(catalog, store, embedder)

	next, stats, err := uc.Run(context.Background(), base)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Succeeded)
	assert.Equal(t, 1, stats.Failed)
	// The cursor must stay below the shared timestamp, otherwise the strict
	// updated_at > watermark scan would never see job 2 again.
	assert.True(t, next.Equal(base))

	// The follow-up run re-reads both: job 1 skips on its content hash,
	// job 2 finally gets its embedding.
	next2, stats2, err := uc.Run(context.Background(), next)
	require.NoError(t, err)
	assert.Equal(t, 1, stats2.Skipped)
	assert.Equal(t, 1, stats2.Succeeded)
	assert.Zero(t, stats2.Failed)
	assert.True(t, next2.Equal(base.Add(1*time.Hour)))

	e, err := store.GetByJobID(context.Background(), 2)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.False(t, e.Stale)
}

// failNthEmbedder fails the Nth embed call and succeeds otherwise.
type failNthEmbedder struct {
	mu     sync.Mutex
	vec    []float32
	calls  int
	failOn int
}

func (e *failNthEmbedder) GetOrCompute(ctx context.Context, text, modelVersion string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.calls == e.failOn {
		return nil, fmt.Errorf("%w: transient failure", apperror.ErrEmbeddingGeneration)
	}
	return e.vec, nil
}

func TestRunMarksRemovedJobStale(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	job := catalogJob(1, "Audit Senior", base.Add(1*time.Hour))
	catalog := newFakeCatalog(job)
	store := newFakeStore()
	embedder := &fakeEmbedder{vec: []float32{1, 0}}
	uc := newTestRefreshUsecase(catalog, store, embedder)

	next, _, err := uc.Run(context.Background(), base)
	require.NoError(t, err)

	// The catalog un-indexes the job.
	job.IsIndexed = false
	job.UpdatedAt = base.Add(2 * time.Hour)
	catalog.put(job)

	_, stats, err := uc.Run(context.Background(), next)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MarkedStale)

	e, err := store.GetByJobID(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.True(t, e.Stale)
}

func TestRunRetriesStaleEmbeddings(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	job := catalogJob(1, "Audit Senior", base.Add(-1*time.Hour))
	catalog := newFakeCatalog(job)

	store := newFakeStore()
	require.NoError(t, store.Upsert(context.Background(), 1, []float32{0, 1}, "old-hash", "ada-002"))
	require.NoError(t, store.MarkStale(context.Background(), 1))

	embedder := &fakeEmbedder{vec: []float32{1, 0}}
	uc := newTestRefreshUsecase(catalog, store, embedder)

	// The job's updated_at is before the watermark, so it only surfaces
	// through the stale list.
	next, stats, err := uc.Run(context.Background(), base)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Succeeded)
	assert.True(t, next.Equal(base))

	e, err := store.GetByJobID(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.False(t, e.Stale)
	assert.Equal(t, job.ContentHash(), e.ContentHash)
}

func TestRunSkipsStaleEmbeddingWithNoCatalogRow(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	catalog := newFakeCatalog()

	store := newFakeStore()
	require.NoError(t, store.Upsert(context.Background(), 7, []float32{0, 1}, "old-hash", "ada-002"))
	require.NoError(t, store.MarkStale(context.Background(), 7))

	embedder := &fakeEmbedder{vec: []float32{1, 0}}
	uc := newTestRefreshUsecase(catalog, store, embedder)

	_, stats, err := uc.Run(context.Background(), base)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Zero(t, embedder.calls)
}

func TestRunRejectsConcurrentRuns(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	catalog := newFakeCatalog(catalogJob(1, "Audit Senior", base.Add(1*time.Hour)))
	store := newFakeStore()

	started := make(chan struct{})
	release := make(chan struct{})
	embedder := &blockingEmbedder{started: started, release: release, vec: []float32{1, 0}}
	uc := newTestRefreshUsecase(catalog, store, embedder)

	done := make(chan error, 1)
	go func() {
		_, _, err := uc.Run(context.Background(), base)
		done <- err
	}()

	<-started
	assert.True(t, uc.Running())
	_, _, err := uc.Run(context.Background(), base)
	assert.ErrorIs(t, err, apperror.ErrReconciliationConflict)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, uc.Running())
}

type blockingEmbedder struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
	vec     []float32
}

func (e *blockingEmbedder) GetOrCompute(ctx context.Context, text, modelVersion string) ([]float32, error) {
	e.once.Do(func() { close(e.started) })
	<-e.release
	return e.vec, nil
}
