package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"alfredoptarigan/resume-matcher/internal/models"
	"alfredoptarigan/resume-matcher/internal/repositories"
)

// EmbeddingWorker backfills missing resume embeddings in the background.
// Resumes arrive through the queue or via the poller, which sweeps the
// database for unprocessed rows.
type EmbeddingWorker interface {
	Start(ctx context.Context)
	Stop()
	Enqueue(resumeID uuid.UUID)
}

type embeddingWorker struct {
	resumeRepo   repositories.ResumeRepository
	embedding    EmbeddingService
	vectors      VectorStore
	queue        chan uuid.UUID
	concurrency  int
	pollInterval time.Duration
	batchSize    int
	logger       *zap.Logger
	wg           sync.WaitGroup
	stopChan     chan struct{}
	stopOnce     sync.Once
}

type EmbeddingWorkerOptions struct {
	Concurrency  int
	PollInterval time.Duration
	BatchSize    int
}

func NewEmbeddingWorker(
	resumeRepo repositories.ResumeRepository,
	embedding EmbeddingService,
	vectors VectorStore,
	opts EmbeddingWorkerOptions,
	logger *zap.Logger,
) EmbeddingWorker {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 3
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	return &embeddingWorker{
		resumeRepo:   resumeRepo,
		embedding:    embedding,
		vectors:      vectors,
		queue:        make(chan uuid.UUID, 100),
		concurrency:  opts.Concurrency,
		pollInterval: opts.PollInterval,
		batchSize:    opts.BatchSize,
		logger:       logger,
		stopChan:     make(chan struct{}),
	}
}

// Start implements EmbeddingWorker.
func (w *embeddingWorker) Start(ctx context.Context) {
	w.logger.Info("starting embedding worker",
		zap.Int("concurrency", w.concurrency),
		zap.Duration("poll_interval", w.pollInterval))

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.processQueue(ctx, i+1)
	}

	w.wg.Add(1)
	go w.pollUnprocessed(ctx)
}

// Stop implements EmbeddingWorker.
func (w *embeddingWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
	})
	w.wg.Wait()
	w.logger.Info("embedding worker stopped")
}

// Enqueue implements EmbeddingWorker.
func (w *embeddingWorker) Enqueue(resumeID uuid.UUID) {
	select {
	case w.queue <- resumeID:
	case <-w.stopChan:
		w.logger.Warn("worker stopped, dropping resume",
			zap.String("resume_id", resumeID.String()))
	}
}

func (w *embeddingWorker) processQueue(ctx context.Context, workerID int) {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopChan:
			return
		case resumeID := <-w.queue:
			if err := w.processResume(ctx, resumeID); err != nil {
				w.logger.Error("failed to backfill resume embedding",
					zap.Int("worker", workerID),
					zap.String("resume_id", resumeID.String()),
					zap.Error(err))
			}
		}
	}
}

func (w *embeddingWorker) processResume(ctx context.Context, resumeID uuid.UUID) error {
	resume, err := w.resumeRepo.FindByID(resumeID)
	if err != nil {
		return err
	}
	if resume.HasEmbedding() {
		return nil
	}

	result, err := w.embedding.Embed(ctx, resume.EmbeddingText())
	if err != nil {
		return err
	}
	if err := w.resumeRepo.UpdateEmbedding(resume.ID, result.Vector); err != nil {
		return err
	}

	w.indexResume(ctx, resume, result.Vector)
	return nil
}

// indexResume mirrors the fresh vector into qdrant. Index failures are
// logged and swallowed since postgres remains the source of truth.
func (w *embeddingWorker) indexResume(ctx context.Context, resume *models.Resume, vector []float32) {
	if w.vectors == nil {
		return
	}
	resume.Embedding = vector
	if err := w.vectors.UpsertResumeVector(ctx, resume); err != nil {
		w.logger.Warn("failed to index resume vector",
			zap.String("resume_id", resume.ID.String()),
			zap.Error(err))
	}
}

func (w *embeddingWorker) pollUnprocessed(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.sweepBatch(ctx)
		}
	}
}

// sweepBatch embeds one batch of pending resumes in a single model call.
func (w *embeddingWorker) sweepBatch(ctx context.Context) {
	resumes, err := w.resumeRepo.FindWithoutEmbedding(w.batchSize)
	if err != nil {
		w.logger.Warn("failed to fetch resumes without embeddings", zap.Error(err))
		return
	}
	if len(resumes) == 0 {
		return
	}

	w.logger.Info("backfilling resume embeddings", zap.Int("count", len(resumes)))

	texts := make([]string, len(resumes))
	for i := range resumes {
		texts[i] = resumes[i].EmbeddingText()
	}

	results, err := w.embedding.EmbedBatch(ctx, texts)
	if err != nil {
		w.logger.Error("batch embedding backfill failed", zap.Error(err))
		return
	}

	for i := range resumes {
		// Degraded results stay unpersisted so the next sweep retries them.
		if results[i].Fallback {
			continue
		}
		if err := w.resumeRepo.UpdateEmbedding(resumes[i].ID, results[i].Vector); err != nil {
			w.logger.Error("failed to persist backfilled embedding",
				zap.String("resume_id", resumes[i].ID.String()),
				zap.Error(err))
			continue
		}
		w.indexResume(ctx, &resumes[i], results[i].Vector)
	}
}
