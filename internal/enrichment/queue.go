// Package enrichment дописывает к сохранённым сообщениям эмбеддинги в фоне.
// Сообщение уже доставлено подписчикам, ошибки здесь только логируются.
package enrichment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/thereayou/teamchat/internal/metrics"
)

const (
	defaultWorkers   = 2
	defaultQueueSize = 256
	jobTimeout       = 15 * time.Second
)

// EmbeddingWriter вторая фаза записи сообщения
type EmbeddingWriter interface {
	SetMessageEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error
}

type Job struct {
	MessageID uuid.UUID
	Content   string
}

type Queue struct {
	embedder Embedder
	store    EmbeddingWriter
	metrics  *metrics.Metrics

	jobs    chan Job
	workers int
	wg      conc.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewQueue(embedder Embedder, store EmbeddingWriter, m *metrics.Metrics, workers, size int) *Queue {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Queue{
		embedder: embedder,
		store:    store,
		metrics:  m,
		jobs:     make(chan Job, size),
		workers:  workers,
	}
}

// Start запускает воркеры. Они работают до Close.
func (q *Queue) Start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Go(q.work)
	}
	log.Info().Str("module", "enrichment").Int("workers", q.workers).Msg("enrichment workers started")
}

// Enqueue не блокируется, при переполнении задача отбрасывается
func (q *Queue) Enqueue(messageID uuid.UUID, content string) bool {
	if q == nil {
		return false
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return false
	}

	select {
	case q.jobs <- Job{MessageID: messageID, Content: content}:
		return true
	default:
		q.metrics.EnrichmentResult("dropped")
		log.Warn().Str("module", "enrichment").Str("message", messageID.String()).Msg("enrichment queue full, job dropped")
		return false
	}
}

// Close перестаёт принимать задачи и ждёт, пока воркеры доработают очередь
func (q *Queue) Close() {
	if q == nil {
		return
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
	log.Info().Str("module", "enrichment").Msg("enrichment workers stopped")
}

func (q *Queue) work() {
	for job := range q.jobs {
		q.process(job)
	}
}

func (q *Queue) process(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	logger := log.With().Str("module", "enrichment").Str("message", job.MessageID.String()).Logger()

	vec, err := q.embedder.Embed(ctx, job.Content)
	if err != nil {
		q.metrics.EnrichmentResult("failed")
		logger.Warn().Err(err).Msg("embedding failed")
		return
	}

	// Сообщение могли удалить, пока считался вектор
	if err := q.store.SetMessageEmbedding(ctx, job.MessageID, vec); err != nil {
		q.metrics.EnrichmentResult("failed")
		logger.Warn().Err(err).Msg("failed to store embedding")
		return
	}

	q.metrics.EnrichmentResult("stored")
	logger.Debug().Int("dims", len(vec)).Msg("embedding stored")
}
