package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paperdesk/paperdesk-backend/internal/config"
	"github.com/paperdesk/paperdesk-backend/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	ResultBatchSize    = 50
	ResultBatchTimeout = 2 * time.Second
	ResultPollTimeout  = 1 * time.Second
)

// ResultWorker consumes the persist-results queue and records each published
// result in the declaration log, batched to keep publish bursts (an
// instructor declaring a whole cohort) off the request path.
type ResultWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewResultWorker creates a new ResultWorker.
func NewResultWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ResultWorker {
	return &ResultWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "result_worker").Logger(),
	}
}

// Start begins the batching worker loop. Call in a goroutine.
func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultWorker started")

	batch := make([]*service.ResultJob, 0, ResultBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= ResultBatchSize || time.Since(lastFlush) >= ResultBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ResultPollTimeout, config.WorkerKey.PersistResultsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var job service.ResultJob
			if err := json.Unmarshal([]byte(item[1]), &job); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &job)
		}
	}
}

func (w *ResultWorker) flushSafe(ctx context.Context, batch []*service.ResultJob) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkInsertDeclarations(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk declaration insert failed, using fallback")

		for _, job := range batch {
			if err := w.persistSingle(ctx, job); err != nil {
				w.log.Error().Err(err).Msg("persistSingle failed, requeueing")
				raw, _ := json.Marshal(job)
				w.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw)
			}
		}
		return
	}

	// Declared attempts no longer need their autosave scratch.
	w.bulkClearScratch(ctx, batch)
}

// bulkInsertDeclarations writes the whole batch in one round trip using
// UNNEST arrays.
func (w *ResultWorker) bulkInsertDeclarations(ctx context.Context, batch []*service.ResultJob) error {
	n := len(batch)

	papers := make([]string, 0, n)
	candidates := make([]int, 0, n)
	totals := make([]int, 0, n)
	obtained := make([]int, 0, n)
	percentages := make([]float64, 0, n)
	declaredAts := make([]time.Time, 0, n)

	for _, job := range batch {
		papers = append(papers, job.PaperCode)
		candidates = append(candidates, job.CandidateID)
		totals = append(totals, job.Result.TotalMarks)
		obtained = append(obtained, job.Result.ObtainedMarks)
		percentages = append(percentages, job.Result.Percentage)
		declaredAts = append(declaredAts, job.Result.DeclaredAt)
	}

	query := `
		INSERT INTO result_declarations
			(paper_code, candidate_id, total_marks, obtained_marks, percentage, declared_at)
		SELECT u.paper_code, u.candidate_id, u.total_marks, u.obtained_marks, u.percentage, u.declared_at
		FROM UNNEST(
			$1::varchar[],
			$2::int[],
			$3::int[],
			$4::int[],
			$5::float8[],
			$6::timestamptz[]
		) AS u (paper_code, candidate_id, total_marks, obtained_marks, percentage, declared_at)
	`

	_, err := w.pool.Exec(ctx, query, papers, candidates, totals, obtained, percentages, declaredAts)
	return err
}

func (w *ResultWorker) bulkClearScratch(ctx context.Context, batch []*service.ResultJob) {
	pipe := w.rdb.Pipeline()

	for _, job := range batch {
		pipe.Del(ctx, config.CacheKey.AttemptAnswersKey(job.PaperCode, job.CandidateID))
	}

	_, _ = pipe.Exec(ctx)
}

func (w *ResultWorker) persistSingle(ctx context.Context, job *service.ResultJob) error {
	_, err := w.pool.Exec(ctx,
		`INSERT INTO result_declarations
			(paper_code, candidate_id, total_marks, obtained_marks, percentage, declared_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		job.PaperCode, job.CandidateID,
		job.Result.TotalMarks, job.Result.ObtainedMarks, job.Result.Percentage, job.Result.DeclaredAt,
	)
	return err
}
