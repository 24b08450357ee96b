// Package memory keeps per-(user, session) conversation history in redis.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"conversation-orchestrator/internal/common/errors"
	"conversation-orchestrator/internal/common/logger"
	"conversation-orchestrator/internal/models"
)

const keyPrefix = "ai:conversation:"

// Store is a capped redis list of JSON-encoded messages per conversation.
type Store struct {
	client *redis.Client
	limit  int
	ttl    time.Duration
	logger logger.Logger
}

// NewStore keeps at most limit messages per conversation. A zero ttl keeps
// conversations until they are cleared.
func NewStore(client *redis.Client, limit int, ttl time.Duration, log logger.Logger) *Store {
	if limit <= 0 {
		limit = 10
	}
	return &Store{
		client: client,
		limit:  limit,
		ttl:    ttl,
		logger: log.With(map[string]interface{}{"component": "memory-store"}),
	}
}

func conversationKey(userID, sessionID string) string {
	return keyPrefix + userID + ":" + sessionID
}

// Append adds messages in order and trims the conversation to the limit.
func (s *Store) Append(ctx context.Context, userID, sessionID string, msgs ...models.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now().UTC()
		}
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		values = append(values, data)
	}

	key := conversationKey(userID, sessionID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		pipe.LTrim(ctx, key, int64(-s.limit), -1)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return errors.NewDatabaseQueryFailedError("memory append", err)
	}

	s.logger.Debug("conversation appended", map[string]interface{}{
		"userId":    userID,
		"sessionId": sessionID,
		"messages":  len(msgs),
	})
	return nil
}

// Recent returns up to n of the newest messages, oldest first.
func (s *Store) Recent(ctx context.Context, userID, sessionID string, n int) ([]models.Message, error) {
	if n <= 0 {
		return nil, nil
	}

	raw, err := s.client.LRange(ctx, conversationKey(userID, sessionID), int64(-n), -1).Result()
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError("memory read", err)
	}

	out := make([]models.Message, 0, len(raw))
	for _, r := range raw {
		var m models.Message
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			s.logger.Warn("skipping undecodable message", map[string]interface{}{
				"userId":    userID,
				"sessionId": sessionID,
				"error":     err.Error(),
			})
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// Clear drops the whole conversation.
func (s *Store) Clear(ctx context.Context, userID, sessionID string) error {
	if err := s.client.Del(ctx, conversationKey(userID, sessionID)).Err(); err != nil {
		return errors.NewDatabaseQueryFailedError("memory clear", err)
	}
	return nil
}
