package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CodeGenerator 业务单号生成器
// 计数器状态外置（Redis），进程重启不回退、多实例不重号
type CodeGenerator interface {
	NextWorkOrderCode(ctx context.Context, date time.Time) (string, error)
	NextProjectCode(ctx context.Context) (string, error)
}

// RedisCodeGenerator 基于Redis INCR的单号生成器
type RedisCodeGenerator struct {
	rdb *redis.Client
}

// NewRedisCodeGenerator 创建Redis单号生成器
func NewRedisCodeGenerator(rdb *redis.Client) *RedisCodeGenerator {
	return &RedisCodeGenerator{rdb: rdb}
}

// NextWorkOrderCode 生成工单号 WO-YYYYMMDD-NNNN，按排产日期日内递增
func (g *RedisCodeGenerator) NextWorkOrderCode(ctx context.Context, date time.Time) (string, error) {
	dateStr := date.Format("20060102")
	key := "nimo-mes:seq:wo:" + dateStr
	n, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("incr work order sequence: %w", err)
	}
	// 日期键留7天足够追溯重试，过期自动清理
	g.rdb.Expire(ctx, key, 7*24*time.Hour)
	return fmt.Sprintf("WO-%s-%04d", dateStr, n), nil
}

// NextProjectCode 生成项目编号 NPD-NNNN，全局递增
func (g *RedisCodeGenerator) NextProjectCode(ctx context.Context) (string, error) {
	n, err := g.rdb.Incr(ctx, "nimo-mes:seq:npd").Result()
	if err != nil {
		return "", fmt.Errorf("incr project sequence: %w", err)
	}
	return fmt.Sprintf("NPD-%04d", n), nil
}
