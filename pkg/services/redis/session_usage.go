package redisservice

import (
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const SessionUsageRedisKey = Prefix + "sessionUsage"

type SessionTask int

const (
	SessionStarted SessionTask = iota
	SessionEnded
)

// SessionUsage records when a session starts and, when it ends, adds its
// lifetime in seconds to total_usage and returns it.
func (s *RedisService) SessionUsage(sessionId string, task SessionTask) (int64, error) {
	key := SessionUsageRedisKey

	switch task {
	case SessionStarted:
		_, err := s.rc.HSet(s.ctx, key, sessionId, time.Now().Unix()).Result()
		if err != nil {
			return 0, err
		}
	case SessionEnded:
		var usage int64
		err := s.rc.Watch(s.ctx, func(tx *redis.Tx) error {
			var start int64
			if ss, err := tx.HGet(s.ctx, key, sessionId).Result(); err == nil && ss != "" {
				start, _ = strconv.ParseInt(ss, 10, 64)
			}
			_, err := tx.TxPipelined(s.ctx, func(pipe redis.Pipeliner) error {
				if start > 0 {
					usage = time.Now().Unix() - start
					pipe.HIncrBy(s.ctx, key, "total_usage", usage)
				}
				pipe.HDel(s.ctx, key, sessionId)
				return nil
			})
			return err
		}, key)

		if err != nil {
			return 0, err
		}
		return usage, nil
	}

	return 0, nil
}

func (s *RedisService) TotalSessionUsage() (int64, error) {
	total, err := s.rc.HGet(s.ctx, SessionUsageRedisKey, "total_usage").Int64()
	switch {
	case errors.Is(err, redis.Nil):
		return 0, nil
	case err != nil:
		return 0, err
	}
	return total, nil
}
