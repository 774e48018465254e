package redisservice

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const TranscriptRedisKey = Prefix + "transcript"

// TranscriptEntry is one recognized turn of a session, either spoken by the
// user or a bot reply.
type TranscriptEntry struct {
	ActivityId string `json:"activity_id"`
	Role       string `json:"role"`
	Text       string `json:"text"`
	Timestamp  int64  `json:"timestamp"`
}

func (s *RedisService) AddTranscript(sessionId string, entry *TranscriptEntry, ttl time.Duration) error {
	key := fmt.Sprintf("%s:%s", TranscriptRedisKey, sessionId)
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	_, err = s.rc.TxPipelined(s.ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(s.ctx, key, data)
		pipe.Expire(s.ctx, key, ttl)
		return nil
	})
	return err
}

func (s *RedisService) GetTranscripts(sessionId string) ([]*TranscriptEntry, error) {
	key := fmt.Sprintf("%s:%s", TranscriptRedisKey, sessionId)
	items, err := s.rc.LRange(s.ctx, key, 0, -1).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, err
	}

	entries := make([]*TranscriptEntry, 0, len(items))
	for _, item := range items {
		e := new(TranscriptEntry)
		if err := json.Unmarshal([]byte(item), e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *RedisService) DeleteTranscripts(sessionId string) error {
	_, err := s.rc.Del(s.ctx, fmt.Sprintf("%s:%s", TranscriptRedisKey, sessionId)).Result()
	return err
}
