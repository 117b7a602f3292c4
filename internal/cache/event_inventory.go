package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"festival-booking/internal/model"

	"github.com/redis/go-redis/v9"
)

// ErrSnapshotMiss 快取中沒有這個活動的快照
var ErrSnapshotMiss = errors.New("inventory snapshot miss")

// InventoryCache 活動庫存的顯示用快照。真正的庫存以 store 為準，這裡只給讀取加速。
type InventoryCache interface {
	// 同步：version 比快取中的舊時不覆蓋，回傳是否有寫入
	Sync(ctx context.Context, snapshot model.InventorySnapshot) (bool, error)
	// 獲取：miss 時回傳 ErrSnapshotMiss
	Get(ctx context.Context, eventID string) (model.InventorySnapshot, error)
	// 移除：活動刪除時清掉快照
	Evict(ctx context.Context, eventID string) error
}

type RedisInventoryCacheImpl struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisInventoryCache(client *redis.Client, ttl time.Duration) InventoryCache {
	return &RedisInventoryCacheImpl{
		client: client,
		ttl:    ttl,
	}
}

// 庫存快照 key
func (m *RedisInventoryCacheImpl) getInventoryKey(eventID string) string {
	return fmt.Sprintf("event:%s:inventory", eventID)
}

/*
*

	同步快照 (使用Lua腳本確保原子性)
	1. 比較目前版本與新版本
	2. 新版本較舊就放棄
	3. 寫入所有欄位並更新過期時間

	version 是 UpdatedAt 的 UnixNano，超過 Lua number 的精度，所以用字串長度 + 字典序比較
*/
var syncScript = redis.NewScript(`
	local key = KEYS[1]
	local incoming = ARGV[5]
	local ttl_ms = tonumber(ARGV[6])

	local current = redis.call('HGET', key, 'version')
	if current then
		if #current > #incoming or (#current == #incoming and current > incoming) then
			return 0 -- 快取中的版本比較新
		end
	end

	redis.call('HSET', key,
		'capacity', ARGV[1],
		'sold', ARGV[2],
		'start_at', ARGV[3],
		'cancelled', ARGV[4],
		'version', incoming)

	if ttl_ms > 0 then
		redis.call('PEXPIRE', key, ttl_ms)
	end

	return 1
`)

func (m *RedisInventoryCacheImpl) Sync(ctx context.Context, snapshot model.InventorySnapshot) (bool, error) {
	key := m.getInventoryKey(snapshot.EventID)

	cancelled := 0
	if snapshot.Cancelled {
		cancelled = 1
	}

	result, err := syncScript.Run(ctx, m.client, []string{key},
		snapshot.Capacity,
		snapshot.Sold,
		snapshot.StartAt.UnixNano(),
		cancelled,
		strconv.FormatInt(snapshot.Version, 10),
		m.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}

	return result == 1, nil
}

func (m *RedisInventoryCacheImpl) Get(ctx context.Context, eventID string) (model.InventorySnapshot, error) {
	key := m.getInventoryKey(eventID)
	result, err := m.client.HGetAll(ctx, key).Result()
	if err != nil {
		return model.InventorySnapshot{}, err
	}

	// 檢查 key 是否存在
	if len(result) == 0 {
		return model.InventorySnapshot{}, ErrSnapshotMiss
	}

	capacity, err := strconv.Atoi(result["capacity"])
	if err != nil {
		return model.InventorySnapshot{}, fmt.Errorf("invalid capacity: %v", err)
	}

	sold, err := strconv.Atoi(result["sold"])
	if err != nil {
		return model.InventorySnapshot{}, fmt.Errorf("invalid sold: %v", err)
	}

	startAt, err := strconv.ParseInt(result["start_at"], 10, 64)
	if err != nil {
		return model.InventorySnapshot{}, fmt.Errorf("invalid start_at: %v", err)
	}

	version, err := strconv.ParseInt(result["version"], 10, 64)
	if err != nil {
		return model.InventorySnapshot{}, fmt.Errorf("invalid version: %v", err)
	}

	return model.InventorySnapshot{
		EventID:   eventID,
		Capacity:  capacity,
		Sold:      sold,
		StartAt:   time.Unix(0, startAt).UTC(),
		Cancelled: result["cancelled"] == "1",
		Version:   version,
	}, nil
}

func (m *RedisInventoryCacheImpl) Evict(ctx context.Context, eventID string) error {
	return m.client.Del(ctx, m.getInventoryKey(eventID)).Err()
}

// NopInventoryCache 沒有 Redis 時使用，永遠 miss
type NopInventoryCache struct{}

func NewNopInventoryCache() InventoryCache {
	return NopInventoryCache{}
}

func (NopInventoryCache) Sync(ctx context.Context, snapshot model.InventorySnapshot) (bool, error) {
	return false, nil
}

func (NopInventoryCache) Get(ctx context.Context, eventID string) (model.InventorySnapshot, error) {
	return model.InventorySnapshot{}, ErrSnapshotMiss
}

func (NopInventoryCache) Evict(ctx context.Context, eventID string) error {
	return nil
}
