package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"comfy-studio/server/internal/config"
	"comfy-studio/server/internal/workflow"
)

// RedisStore backs the panel's removable artifact strip: the ordered list
// of artifacts the browser shows, newest first. Durable history lives in
// MySQL; this list is the fast mutable working set.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) GetClient() *redis.Client {
	return s.client
}

const (
	artifactListKey     = "artifacts:list"
	artifactMaxListSize = 500 // the strip never grows unbounded
	artifactListTTL     = 7 * 24 * time.Hour

	runStateKeyPrefix = "runs:state:"
	runStateTTL       = time.Hour
)

// PushArtifacts prepends a run's artifacts to the strip, newest first, and
// trims the list to its size cap.
func (s *RedisStore) PushArtifacts(ctx context.Context, artifacts []workflow.Artifact) error {
	for _, artifact := range artifacts {
		data, err := json.Marshal(artifact)
		if err != nil {
			return fmt.Errorf("failed to marshal artifact: %w", err)
		}
		if err := s.client.LPush(ctx, artifactListKey, data).Err(); err != nil {
			return fmt.Errorf("failed to push artifact: %w", err)
		}
	}

	if err := s.client.LTrim(ctx, artifactListKey, 0, int64(artifactMaxListSize-1)).Err(); err != nil {
		return fmt.Errorf("failed to trim artifact list: %w", err)
	}

	if err := s.client.Expire(ctx, artifactListKey, artifactListTTL).Err(); err != nil {
		// Non-critical, the list just outlives its intended window.
		log.Printf("[RedisStore] Warning: failed to set artifact list TTL: %v", err)
	}
	return nil
}

// ListArtifacts returns up to limit artifacts, newest first. Entries that
// no longer parse are skipped rather than failing the whole read.
func (s *RedisStore) ListArtifacts(ctx context.Context, limit int64) ([]workflow.Artifact, error) {
	if limit <= 0 || limit > artifactMaxListSize {
		limit = 100
	}

	results, err := s.client.LRange(ctx, artifactListKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact list: %w", err)
	}

	artifacts := make([]workflow.Artifact, 0, len(results))
	for _, result := range results {
		var artifact workflow.Artifact
		if err := json.Unmarshal([]byte(result), &artifact); err != nil {
			continue
		}
		artifacts = append(artifacts, artifact)
	}
	return artifacts, nil
}

// GetArtifact finds one artifact in the strip by id.
func (s *RedisStore) GetArtifact(ctx context.Context, id string) (workflow.Artifact, bool, error) {
	results, err := s.client.LRange(ctx, artifactListKey, 0, -1).Result()
	if err != nil {
		return workflow.Artifact{}, false, fmt.Errorf("failed to read artifact list: %w", err)
	}
	for _, result := range results {
		var artifact workflow.Artifact
		if err := json.Unmarshal([]byte(result), &artifact); err != nil {
			continue
		}
		if artifact.ID == id {
			return artifact, true, nil
		}
	}
	return workflow.Artifact{}, false, nil
}

// RemoveArtifact deletes one artifact from the strip by id. Removal is by
// exact stored value, so the entry is located first.
func (s *RedisStore) RemoveArtifact(ctx context.Context, id string) (bool, error) {
	results, err := s.client.LRange(ctx, artifactListKey, 0, -1).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read artifact list: %w", err)
	}

	for _, result := range results {
		var artifact workflow.Artifact
		if err := json.Unmarshal([]byte(result), &artifact); err != nil {
			continue
		}
		if artifact.ID != id {
			continue
		}
		if err := s.client.LRem(ctx, artifactListKey, 1, result).Err(); err != nil {
			return false, fmt.Errorf("failed to remove artifact: %w", err)
		}
		return true, nil
	}
	return false, nil
}

// ArtifactCount returns the strip's current length.
func (s *RedisStore) ArtifactCount(ctx context.Context) (int64, error) {
	return s.client.LLen(ctx, artifactListKey).Result()
}

// ClearArtifacts empties the strip.
func (s *RedisStore) ClearArtifacts(ctx context.Context) error {
	return s.client.Del(ctx, artifactListKey).Err()
}

// SetRunState mirrors a run snapshot for quick polling reads. Snapshots
// expire on their own; MySQL keeps the durable record.
func (s *RedisStore) SetRunState(ctx context.Context, runID string, snapshot interface{}) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}
	return s.client.Set(ctx, runStateKeyPrefix+runID, data, runStateTTL).Err()
}

// GetRunState reads a mirrored run snapshot into dest. found is false if
// the snapshot expired or never existed.
func (s *RedisStore) GetRunState(ctx context.Context, runID string, dest interface{}) (bool, error) {
	data, err := s.client.Get(ctx, runStateKeyPrefix+runID).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read run state: %w", err)
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to decode run state: %w", err)
	}
	return true, nil
}
