package application

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"vodscribe.tv/vodscribe/internal/config"
)

// BrokerOpt builds the asynq connection options from the shared broker config.
func BrokerOpt(conf config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     conf.RedisAddr,
		Password: conf.RedisPassword,
		DB:       conf.RedisDB,
	}
}

// OpenRedis initializes the long-lived Redis client shared by the clip queue.
func OpenRedis(ctx context.Context, conf config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.RedisAddr,
		Password: conf.RedisPassword,
		DB:       conf.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", conf.RedisAddr, err)
	}

	return client, nil
}
