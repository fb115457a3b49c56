package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/harborline/harborline/internal/identity"
	jobmetrics "github.com/harborline/harborline/internal/jobs"
	"github.com/harborline/harborline/internal/shared"
)

// SessionSweepJob deletes session keys whose bound user id no longer
// resolves in the directory, so sessions of deleted accounts do not linger
// until their TTL.
type SessionSweepJob struct {
	redis     *redis.Client
	directory identity.Directory
	logger    *slog.Logger
	metrics   *jobmetrics.Metrics
}

// NewSessionSweepJob constructs the job.
func NewSessionSweepJob(client *redis.Client, directory identity.Directory, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionSweepJob {
	return &SessionSweepJob{redis: client, directory: directory, logger: logger, metrics: metrics}
}

// Handle processes one sweep run.
func (j *SessionSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	var cursor uint64
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(8)

	for {
		keys, next, err := j.redis.Scan(ctx, cursor, shared.SessionKeyPrefix+"*", 100).Result()
		if err != nil {
			return err
		}
		for _, key := range keys {
			group.Go(func() error {
				return j.sweepKey(groupCtx, key)
			})
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return group.Wait()
}

func (j *SessionSweepJob) sweepKey(ctx context.Context, key string) error {
	raw, err := j.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}
	var payload struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || payload.UserID == "" {
		return nil
	}
	id, err := strconv.ParseInt(payload.UserID, 10, 64)
	if err != nil {
		return nil
	}
	if _, err := j.directory.FindByID(ctx, id); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			if j.logger != nil {
				j.logger.Info("sweeping orphaned session", slog.String("key", key))
			}
			if err := j.redis.Del(ctx, key).Err(); err != nil {
				return err
			}
			j.metrics.AddSweptSessions(1)
			return nil
		}
		return err
	}
	return nil
}
