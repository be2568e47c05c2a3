package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/routing-engine/internal/domain"
)

const ruleCacheKey = "routing:rules:enabled"

// RuleCache keeps the enabled-rule snapshot in redis for a short TTL so
// bursts of ticket creation do not hammer the rule table. Mutating a rule
// invalidates the cache, which is what makes a priority change re-sort
// evaluation order immediately.
type RuleCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

type cachedRule struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Type        domain.RuleType `json:"type"`
	Priority    int             `json:"priority"`
	Enabled     bool            `json:"enabled"`
	Config      json.RawMessage `json:"config"`
	Description string          `json:"description"`
}

// NewRuleCache builds a cache; a nil client or zero TTL disables caching.
func NewRuleCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RuleCache {
	if client == nil || ttl <= 0 {
		return nil
	}
	return &RuleCache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached rule list, or false on miss or any cache error.
func (c *RuleCache) Get(ctx context.Context) ([]domain.AssignmentRule, bool) {
	if c == nil {
		return nil, false
	}
	payload, err := c.client.Get(ctx, ruleCacheKey).Bytes()
	if err != nil {
		return nil, false
	}
	var cached []cachedRule
	if err := json.Unmarshal(payload, &cached); err != nil {
		c.logger.Warn("rule cache payload corrupt, invalidating", zap.Error(err))
		c.Invalidate(ctx)
		return nil, false
	}
	rules := make([]domain.AssignmentRule, 0, len(cached))
	for _, cr := range cached {
		rules = append(rules, domain.AssignmentRule{
			ID:          cr.ID,
			Name:        cr.Name,
			Type:        cr.Type,
			Priority:    cr.Priority,
			Enabled:     cr.Enabled,
			RawConfig:   cr.Config,
			Description: cr.Description,
		})
	}
	return rules, true
}

// Set stores the rule list; cache errors are logged and ignored.
func (c *RuleCache) Set(ctx context.Context, rules []domain.AssignmentRule) {
	if c == nil {
		return
	}
	cached := make([]cachedRule, 0, len(rules))
	for _, rule := range rules {
		cached = append(cached, cachedRule{
			ID:          rule.ID,
			Name:        rule.Name,
			Type:        rule.Type,
			Priority:    rule.Priority,
			Enabled:     rule.Enabled,
			Config:      json.RawMessage(rule.RawConfig),
			Description: rule.Description,
		})
	}
	payload, err := json.Marshal(cached)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, ruleCacheKey, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("rule cache set failed", zap.Error(err))
	}
}

// Invalidate drops the cached snapshot.
func (c *RuleCache) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, ruleCacheKey).Err(); err != nil {
		c.logger.Warn("rule cache invalidation failed", zap.Error(err))
	}
}
