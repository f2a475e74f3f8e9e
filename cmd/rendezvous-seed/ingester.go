package main

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	rendezvous "github.com/kailas-cloud/rendezvous/pkg/sdk"
)

// profileWriter is the part of the client the ingester writes through.
type profileWriter interface {
	Upsert(ctx context.Context, userID, summary string, opts ...rendezvous.ProfileOption) (rendezvous.Profile, error)
	UpsertEmbeddings(ctx context.Context, contextName string, items []rendezvous.EmbeddingItem) []rendezvous.ItemResult
}

// ingester is a worker pool: reader -> channel(batch) -> N workers -> store.
type ingester struct {
	profiles    profileWriter
	contextName string
	workers     int
	batchSize   int
	metrics     *seedMetrics
	cursor      *cursorTracker
	logger      *zap.Logger
}

type batchItem struct {
	rows      []profileRow
	fileIndex int
	rowOffset int // first row after the batch
}

type ingestResult struct {
	Processed int64
	Failed    int64
	Duration  time.Duration
}

// Run loads every row after the saved cursor.
func (ing *ingester) Run(ctx context.Context, reader *parquetReader, maxRows int) (ingestResult, error) {
	cur := ing.cursor.Get()

	batches := make(chan batchItem, ing.workers*2)
	var wg sync.WaitGroup
	var processed, failed atomic.Int64
	start := time.Now()

	for i := 0; i < ing.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for b := range batches {
				ing.processBatch(ctx, workerID, b, &processed, &failed)
			}
		}(i)
	}

	var readErr error
	go func() {
		defer close(batches)
		readErr = ing.produce(ctx, reader, cur.FileIndex, cur.RowOffset, maxRows, batches)
	}()

	wg.Wait()

	return ingestResult{
		Processed: processed.Load(),
		Failed:    failed.Load(),
		Duration:  time.Since(start),
	}, readErr
}

func (ing *ingester) produce(
	ctx context.Context, reader *parquetReader,
	fileIndex, rowOffset, maxRows int, out chan<- batchItem,
) error {
	batch := make([]profileRow, 0, ing.batchSize)
	lastFile, nextRow := fileIndex, rowOffset

	flush := func() {
		if len(batch) == 0 {
			return
		}
		out <- batchItem{rows: batch, fileIndex: lastFile, rowOffset: nextRow}
		batch = make([]profileRow, 0, ing.batchSize)
	}

	err := reader.Read(fileIndex, rowOffset, maxRows, func(row *profileRow, fi, offset int) bool {
		if ctx.Err() != nil {
			return false
		}
		if fi != lastFile {
			// Cursor positions never span files.
			flush()
			lastFile = fi
		}
		nextRow = offset + 1

		if !row.valid() {
			ing.metrics.rowsFailed.WithLabelValues("invalid_row").Inc()
			return true
		}
		batch = append(batch, row.detach())
		if len(batch) >= ing.batchSize {
			flush()
		}
		return true
	})
	flush()
	return err
}

func (ing *ingester) processBatch(
	ctx context.Context, workerID int, b batchItem, processed, failed *atomic.Int64,
) {
	start := time.Now()

	// Profiles first: discovery needs the summary of every vector it returns.
	var profileFailed int
	items := make([]rendezvous.EmbeddingItem, 0, len(b.rows))
	for i := range b.rows {
		row := &b.rows[i]
		if _, err := ing.profiles.Upsert(ctx, row.UserID, row.Summary, row.profileOptions()...); err != nil {
			profileFailed++
			ing.metrics.rowsFailed.WithLabelValues("profile_error").Inc()
			ing.logger.Debug("profile upsert failed", zap.String("user_id", row.UserID), zap.Error(err))
			continue
		}
		items = append(items, row.embeddingItem())
	}

	var ok, bad int
	if len(items) > 0 {
		for _, r := range ing.profiles.UpsertEmbeddings(ctx, ing.contextName, items) {
			if r.OK {
				ok++
				continue
			}
			bad++
			if bad == 1 {
				ing.logger.Warn("embedding upsert failed",
					zap.Int("worker", workerID), zap.String("user_id", r.UserID), zap.Error(r.Err))
			}
		}
	}

	ing.metrics.batchDuration.Observe(time.Since(start).Seconds())
	ing.metrics.batchesTotal.Inc()
	ing.metrics.rowsProcessed.Add(float64(ok))
	if bad > 0 {
		ing.metrics.rowsFailed.WithLabelValues("embedding_error").Add(float64(bad))
	}

	processed.Add(int64(ok))
	failed.Add(int64(bad + profileFailed))
	ing.cursor.Advance(b.fileIndex, b.rowOffset, ok, bad+profileFailed)
	ing.metrics.cursorPosition.Set(float64(b.rowOffset))

	if total := processed.Load(); total%10000 < int64(ing.batchSize) {
		ing.logger.Info("seed progress", zap.Int64("processed", total), zap.Int64("failed", failed.Load()))
	}
}
