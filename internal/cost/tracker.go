package cost

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// UsageRecord captures one completed chat turn for ops visibility. It is
// usage accounting, not conversation storage: no message content is kept.
type UsageRecord struct {
	RequestID    string    `json:"request_id"`
	Agent        string    `json:"agent"`
	Model        string    `json:"model"`
	Provider     string    `json:"provider"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CostUSD      float64   `json:"cost_usd"`
	Streamed     bool      `json:"streamed"`
	LatencyMs    int64     `json:"latency_ms"`
	Timestamp    time.Time `json:"timestamp"`
}

type Tracker interface {
	Record(ctx context.Context, record UsageRecord) error
	TotalCost(ctx context.Context) (float64, error)
}

type InMemoryTracker struct {
	mu      sync.RWMutex
	records []UsageRecord
}

func NewInMemoryTracker() *InMemoryTracker {
	return &InMemoryTracker{records: make([]UsageRecord, 0)}
}

func (t *InMemoryTracker) Record(ctx context.Context, record UsageRecord) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.records = append(t.records, record)
	return nil
}

func (t *InMemoryTracker) TotalCost(ctx context.Context) (float64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var total float64
	for _, r := range t.records {
		total += r.CostUSD
	}
	return total, nil
}

func (t *InMemoryTracker) Records() []UsageRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]UsageRecord, len(t.records))
	copy(result, t.records)
	return result
}

const (
	redisRecordsKey   = "chatrelay:usage:records"
	redisTotalCostKey = "chatrelay:usage:total_cost"
)

// RedisTracker keeps usage records in a Redis list plus a running cost
// counter, so totals survive restarts without a relational store.
type RedisTracker struct {
	client *redis.Client
}

func NewRedisTracker(redisURL string) (*RedisTracker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisTracker{client: client}, nil
}

func (t *RedisTracker) Record(ctx context.Context, record UsageRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	pipe := t.client.TxPipeline()
	pipe.RPush(ctx, redisRecordsKey, data)
	pipe.IncrByFloat(ctx, redisTotalCostKey, record.CostUSD)
	_, err = pipe.Exec(ctx)
	return err
}

func (t *RedisTracker) TotalCost(ctx context.Context) (float64, error) {
	total, err := t.client.Get(ctx, redisTotalCostKey).Float64()
	if err == redis.Nil {
		return 0, nil
	}
	return total, err
}

func (t *RedisTracker) Close() error {
	return t.client.Close()
}
