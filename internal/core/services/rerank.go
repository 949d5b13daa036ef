package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/custodia-labs/ragpipe/internal/core/domain"
	"github.com/custodia-labs/ragpipe/internal/core/ports/driven"
	"github.com/custodia-labs/ragpipe/internal/logger"
)

// DefaultRerankWorkers is the inference pool size. Cross-encoder scoring
// is compute-bound, so a small pool serializes concurrent searches on the
// model instead of letting them pile onto it.
const DefaultRerankWorkers = 2

// Reranker rescores search candidates with a cross-encoder through a
// fixed-size worker pool, caching scores per (query, passage) pair for
// the process lifetime.
type Reranker struct {
	scorer driven.RerankScorer
	jobs   chan rerankJob
	log    *logrus.Entry

	scoreMu sync.RWMutex
	scores  map[string]float64

	closeOnce sync.Once
	wg        sync.WaitGroup
}

type rerankJob struct {
	ctx      context.Context
	query    string
	passages []string
	reply    chan rerankReply
}

type rerankReply struct {
	scores []float64
	err    error
}

// NewReranker creates a reranker running workers pool goroutines.
func NewReranker(scorer driven.RerankScorer, workers int) *Reranker {
	if workers <= 0 {
		workers = DefaultRerankWorkers
	}
	r := &Reranker{
		scorer: scorer,
		jobs:   make(chan rerankJob),
		log:    logger.WithComponent("reranker"),
		scores: make(map[string]float64),
	}
	r.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go r.worker()
	}
	return r
}

func (r *Reranker) worker() {
	defer r.wg.Done()
	for job := range r.jobs {
		scores, err := r.scorer.Score(job.ctx, job.query, job.passages)
		job.reply <- rerankReply{scores: scores, err: err}
	}
}

// Rerank jointly scores (query, candidate) pairs and returns candidates
// ordered descending by rerank score, truncated to topK when positive.
// Each result keeps its index into the input list and the candidate's
// payload untouched.
//
// A scoring backend failure is returned as an error wrapping
// domain.ErrRerankerUnavailable; callers fall back to the input order.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []domain.SearchResult, topK int) ([]domain.RerankResult, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	results := make([]domain.RerankResult, len(candidates))
	keys := make([]string, len(candidates))
	var missing []int

	r.scoreMu.RLock()
	for i, c := range candidates {
		keys[i] = scoreKey(query, c.Text)
		results[i] = domain.RerankResult{
			OriginalIndex: i,
			Passage:       c.Text,
			Metadata:      c.Payload,
		}
		if score, ok := r.scores[keys[i]]; ok {
			results[i].RerankScore = score
		} else {
			missing = append(missing, i)
		}
	}
	r.scoreMu.RUnlock()

	if len(missing) > 0 {
		passages := make([]string, len(missing))
		for j, i := range missing {
			passages[j] = candidates[i].Text
		}

		scores, err := r.submit(ctx, query, passages)
		if err != nil {
			return nil, fmt.Errorf("rerank %d candidates: %w", len(candidates), err)
		}

		r.scoreMu.Lock()
		for j, i := range missing {
			results[i].RerankScore = scores[j]
			r.scores[keys[i]] = scores[j]
		}
		r.scoreMu.Unlock()
	} else {
		r.log.WithField("candidates", len(candidates)).Debug("all rerank scores cached")
	}

	// Stable sort with an index tie-break keeps reranking idempotent:
	// rescoring an already-sorted list leaves it unchanged.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].RerankScore != results[j].RerankScore {
			return results[i].RerankScore > results[j].RerankScore
		}
		return results[i].OriginalIndex < results[j].OriginalIndex
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// submit hands scoring work to the pool and waits for the reply, so
// inference queues on the workers rather than on the request goroutines.
func (r *Reranker) submit(ctx context.Context, query string, passages []string) ([]float64, error) {
	job := rerankJob{
		ctx:      ctx,
		query:    query,
		passages: passages,
		reply:    make(chan rerankReply, 1),
	}

	select {
	case r.jobs <- job:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case reply := <-job.reply:
		return reply.scores, reply.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CachedScores returns how many pair scores are held in the cache.
func (r *Reranker) CachedScores() int {
	r.scoreMu.RLock()
	defer r.scoreMu.RUnlock()
	return len(r.scores)
}

// Close stops the workers and the underlying scorer.
func (r *Reranker) Close() error {
	r.closeOnce.Do(func() {
		close(r.jobs)
	})
	r.wg.Wait()
	return r.scorer.Close()
}

// scoreKey is the cache address of one (query, passage) pair.
func scoreKey(query, passage string) string {
	sum := sha256.Sum256([]byte(query + "\x00" + passage))
	return hex.EncodeToString(sum[:])
}
