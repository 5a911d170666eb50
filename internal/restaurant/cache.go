package restaurant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache はレストラン詳細のリードスルーキャッシュ。
// キャッシュミスはエラーではなくnilを返す。
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient はRedisクライアントを生成し疎通確認する。
func NewRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis URLの解析に失敗: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redisへの接続に失敗: %w", err)
	}
	return client, nil
}

// NewCache は新しいCacheを生成する。
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(id string) string {
	return fmt.Sprintf("restaurant:%s", id)
}

// GetRestaurant はキャッシュからレストラン詳細を取得する。
// キャッシュミスの場合は(nil, nil)を返す。
func (c *Cache) GetRestaurant(ctx context.Context, id string) (*Restaurant, error) {
	val, err := c.client.Get(ctx, cacheKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redisからの取得に失敗: %w", err)
	}

	var r Restaurant
	if err := json.Unmarshal([]byte(val), &r); err != nil {
		return nil, fmt.Errorf("キャッシュ値のデコードに失敗: %w", err)
	}
	return &r, nil
}

// SetRestaurant はレストラン詳細をキャッシュへ書き込む。
func (c *Cache) SetRestaurant(ctx context.Context, r Restaurant) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("キャッシュ値のエンコードに失敗: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(r.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redisへの書き込みに失敗: %w", err)
	}
	return nil
}

// DeleteRestaurant はレストラン詳細のキャッシュを無効化する。
func (c *Cache) DeleteRestaurant(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, cacheKey(id)).Err(); err != nil {
		return fmt.Errorf("redisからの削除に失敗: %w", err)
	}
	return nil
}
