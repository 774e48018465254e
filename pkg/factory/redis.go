package factory

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/config"
	"github.com/redis/go-redis/v9"
)

const redisClientName = "plugnmeet-dlspeech"

// NewRedisConnection connects to redis directly or through sentinel. Every
// live session writes transcripts and usage, so the pool grows with the
// session limit.
func NewRedisConnection(ctx context.Context, appCnf *config.AppConfig) error {
	rf := appCnf.RedisInfo
	log := appCnf.Logger.WithField("factory", "redis")
	poolSize := redisPoolSize(&appCnf.SessionSettings)

	var tlsConfig *tls.Config
	if rf.UseTLS {
		tlsConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	var rdb *redis.Client
	if len(rf.SentinelAddresses) > 0 {
		rdb = redis.NewFailoverClient(&redis.FailoverOptions{
			ClientName:       redisClientName,
			SentinelAddrs:    rf.SentinelAddresses,
			SentinelUsername: rf.SentinelUsername,
			SentinelPassword: rf.SentinelPassword,
			MasterName:       rf.MasterName,
			Username:         rf.Username,
			Password:         rf.Password,
			DB:               rf.DBName,
			TLSConfig:        tlsConfig,
			PoolSize:         poolSize,
		})
	} else {
		rdb = redis.NewClient(&redis.Options{
			ClientName: redisClientName,
			Addr:       rf.Host,
			Username:   rf.Username,
			Password:   rf.Password,
			DB:         rf.DBName,
			TLSConfig:  tlsConfig,
			PoolSize:   poolSize,
		})
	}

	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}

	fields := map[string]interface{}{"poolSize": poolSize}
	if info, err := rdb.Info(ctx, "server").Result(); err == nil {
		if version := redisServerVersion(info); version != "" {
			fields["version"] = version
		}
	}
	log.WithFields(fields).Infoln("successfully connected to Redis")

	appCnf.RDS = rdb
	return nil
}

// redisPoolSize allows two connections per session on top of go-redis'
// own default of ten.
func redisPoolSize(sessions *config.SessionSettings) int {
	return 10 + 2*max(sessions.MaxSessions, 0)
}

// redisServerVersion extracts redis_version from an INFO server reply.
func redisServerVersion(info string) string {
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if version, ok := strings.CutPrefix(line, "redis_version:"); ok {
			return version
		}
	}
	return ""
}
