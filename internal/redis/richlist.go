package redis

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/chatcoins/internal/config"
	"github.com/chatcoins/internal/domain"
	"github.com/redis/go-redis/v9"
)

const richListKey = "richlist:balances"

// RichListService maintains the Redis sorted-set read model of account
// balances. Postgres stays authoritative; the sorted set only serves the
// rich-list query, so balances above 2^53 lose precision in the float64
// score but keep their relative order for display.
type RichListService struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRichListService creates a new Redis rich-list service
func NewRichListService(cfg *config.RedisConfig, logger *slog.Logger) (*RichListService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RichListService{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (s *RichListService) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client
func (s *RichListService) Client() *redis.Client {
	return s.client
}

// SetBalance updates one account's score in the rich list
func (s *RichListService) SetBalance(ctx context.Context, actorID string, balance *big.Int) error {
	score, _ := new(big.Float).SetInt(balance).Float64()
	err := s.client.ZAdd(ctx, richListKey, redis.Z{
		Score:  score,
		Member: actorID,
	}).Err()
	if err != nil {
		return fmt.Errorf("setting balance score: %w", err)
	}
	return nil
}

// RemoveAccount removes an account from the rich list
func (s *RichListService) RemoveAccount(ctx context.Context, actorID string) error {
	err := s.client.ZRem(ctx, richListKey, actorID).Err()
	if err != nil {
		return fmt.Errorf("removing account: %w", err)
	}
	return nil
}

// Top returns the n richest accounts in descending balance order
func (s *RichListService) Top(ctx context.Context, n int) ([]domain.RichEntry, error) {
	results, err := s.client.ZRevRangeWithScores(ctx, richListKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top n: %w", err)
	}

	entries := make([]domain.RichEntry, len(results))
	for i, result := range results {
		balance, _ := big.NewFloat(result.Score).Int(nil)
		entries[i] = domain.RichEntry{
			Rank:    int64(i + 1),
			ActorID: result.Member.(string),
			Balance: balance,
		}
	}
	return entries, nil
}

// Rank returns an account's 1-indexed rich-list position
func (s *RichListService) Rank(ctx context.Context, actorID string) (int64, error) {
	rank, err := s.client.ZRevRank(ctx, richListKey, actorID).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("getting rank: %w", err)
	}
	return rank + 1, nil
}

// Count returns the total number of accounts in the rich list
func (s *RichListService) Count(ctx context.Context) (int64, error) {
	count, err := s.client.ZCard(ctx, richListKey).Result()
	if err != nil {
		return 0, fmt.Errorf("getting count: %w", err)
	}
	return count, nil
}

// Rebuild replaces the entire rich list with authoritative balances
// using a rename swap so readers never see a half-built set.
func (s *RichListService) Rebuild(ctx context.Context, entries []domain.RichEntry) error {
	tmpKey := richListKey + ":rebuild"

	pipe := s.client.Pipeline()
	pipe.Del(ctx, tmpKey)
	for _, entry := range entries {
		score, _ := new(big.Float).SetInt(entry.Balance).Float64()
		pipe.ZAdd(ctx, tmpKey, redis.Z{
			Score:  score,
			Member: entry.ActorID,
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("staging rich list: %w", err)
	}

	if len(entries) == 0 {
		if err := s.client.Del(ctx, richListKey).Err(); err != nil {
			return fmt.Errorf("clearing rich list: %w", err)
		}
		return nil
	}

	if err := s.client.Rename(ctx, tmpKey, richListKey).Err(); err != nil {
		return fmt.Errorf("swapping rich list: %w", err)
	}
	return nil
}
