package counter

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TalentFox/internal/pkg/logger"
)

const jobViewsKey = "job:counters:views"

// JobViews buffers portal views of job postings in a redis hash and applies
// them to job_postings.view_count in batches.
type JobViews struct {
	client *redis.Client
	db     *gorm.DB
}

// NewJobViews creates a counter. With a nil client views are dropped.
func NewJobViews(client *redis.Client, db *gorm.DB) *JobViews {
	return &JobViews{client: client, db: db}
}

// Add increments the pending view counter of a job posting.
func (v *JobViews) Add(ctx context.Context, jobID uint) error {
	if v == nil || v.client == nil {
		return nil
	}
	field := strconv.FormatUint(uint64(jobID), 10)
	return v.client.HIncrBy(ctx, jobViewsKey, field, 1).Err()
}

// Run flushes every interval until ctx is done, then flushes once more.
func (v *JobViews) Run(ctx context.Context, interval time.Duration) {
	if v == nil || v.client == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := v.Flush(context.Background()); err != nil {
				logger.L().Warn("final job view flush failed", zap.Error(err))
			}
			return
		case <-ticker.C:
			if err := v.Flush(ctx); err != nil {
				logger.L().Warn("job view flush failed", zap.Error(err))
			}
		}
	}
}

// Flush drains the hash and applies the increments in one UPDATE. The hash is
// renamed first so views counted during the flush are kept for the next run.
// When the UPDATE fails the drained counts are merged back.
func (v *JobViews) Flush(ctx context.Context) error {
	if v == nil || v.client == nil {
		return nil
	}

	tmpKey := fmt.Sprintf("%s:tmp:%d", jobViewsKey, time.Now().UnixNano())
	if err := v.client.Rename(ctx, jobViewsKey, tmpKey).Err(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "no such key") || err == redis.Nil {
			return nil
		}
		return err
	}

	data, err := v.client.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		v.restore(ctx, tmpKey, nil)
		return err
	}

	type pair struct {
		id  uint64
		inc int64
	}
	pairs := make([]pair, 0, len(data))
	for k, val := range data {
		id, perr := strconv.ParseUint(k, 10, 64)
		if perr != nil {
			continue
		}
		inc, ierr := strconv.ParseInt(val, 10, 64)
		if ierr != nil || inc == 0 {
			continue
		}
		pairs = append(pairs, pair{id: id, inc: inc})
	}
	if len(pairs) == 0 {
		return v.client.Del(ctx, tmpKey).Err()
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].id < pairs[j].id })

	// UPDATE job_postings SET view_count = view_count + CASE id WHEN ? THEN ? ... END WHERE id IN (...)
	var builder strings.Builder
	args := make([]interface{}, 0, len(pairs)*3)
	builder.WriteString("UPDATE job_postings SET view_count = view_count + CASE id")
	for _, p := range pairs {
		builder.WriteString(" WHEN ? THEN ?")
		args = append(args, p.id, p.inc)
	}
	builder.WriteString(" ELSE 0 END WHERE id IN (")
	for i, p := range pairs {
		if i > 0 {
			builder.WriteString(",")
		}
		builder.WriteString("?")
		args = append(args, p.id)
	}
	builder.WriteString(")")

	if err := v.db.WithContext(ctx).Exec(builder.String(), args...).Error; err != nil {
		v.restore(ctx, tmpKey, data)
		return fmt.Errorf("apply job views: %w", err)
	}
	return v.client.Del(ctx, tmpKey).Err()
}

// restore adds the drained counts back onto the live hash and drops tmpKey.
// With nil data tmpKey is left for inspection.
func (v *JobViews) restore(ctx context.Context, tmpKey string, data map[string]string) {
	if data == nil {
		logger.L().Error("job views left in drain key", zap.String("key", tmpKey))
		return
	}
	_, err := v.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for field, val := range data {
			inc, perr := strconv.ParseInt(val, 10, 64)
			if perr != nil || inc == 0 {
				continue
			}
			pipe.HIncrBy(ctx, jobViewsKey, field, inc)
		}
		pipe.Del(ctx, tmpKey)
		return nil
	})
	if err != nil {
		logger.L().Error("restoring job views failed", zap.String("key", tmpKey), zap.Error(err))
	}
}
