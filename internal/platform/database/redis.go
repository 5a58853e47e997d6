package database

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/SlpAus/ricebowl-portal/internal/platform/config"
	"github.com/redis/go-redis/v9"
)

const pingTimeout = 2 * time.Second

var runIDPattern = regexp.MustCompile(`run_id:([a-f0-9]+)`)

// OpenRedis 创建Redis客户端。地址为空时返回 nil, nil，表示不使用Redis。
// 首次 Ping 失败时仍然返回客户端，由健康检查器在之后跟踪它的可用性。
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return client, fmt.Errorf("无法连接到Redis %s: %w", cfg.Address, err)
	}
	return client, nil
}

// RedisRunID 从Redis服务器信息中提取run_id，run_id 变化说明Redis发生了重启。
func RedisRunID(ctx context.Context, client redis.Cmdable) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	info, err := client.Info(ctx, "server").Result()
	if err != nil {
		return "", err
	}
	matches := runIDPattern.FindStringSubmatch(info)
	if len(matches) < 2 {
		return "", fmt.Errorf("无法在Redis INFO中找到run_id")
	}
	return matches[1], nil
}
