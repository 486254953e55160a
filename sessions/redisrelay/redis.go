package redisrelay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"

	"github.com/ggoodman/mcp-http-go/sessions"
)

var _ sessions.Relay = (*Relay)(nil)

// Config for the Redis-backed Relay. Defaults can be loaded via envdecode.
type Config struct {
	// RedisAddr like "localhost:6379". ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR,default=localhost:6379"`
	// KeyPrefix for all keys and channels. ENV: MCP_REDIS_PREFIX
	KeyPrefix string `env:"MCP_REDIS_PREFIX,default=mcp:relay:"`
	// ClaimTTL bounds how long an ownership record outlives a crashed owner.
	// ENV: MCP_REDIS_CLAIM_TTL
	ClaimTTL time.Duration `env:"MCP_REDIS_CLAIM_TTL,default=24h"`
}

type Relay struct {
	client    *redis.Client
	pubsub    *redis.PubSub
	keyPrefix string
	ttl       time.Duration
	nodeID    string
}

func New(ctx context.Context, cfg Config) (*Relay, error) {
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}
	cl := redis.NewClient(&redis.Options{Addr: addr})
	if err := cl.Ping(ctx).Err(); err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "mcp:relay:"
	}
	ttl := cfg.ClaimTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Relay{
		client:    cl,
		pubsub:    cl.Subscribe(ctx),
		keyPrefix: prefix,
		ttl:       ttl,
		nodeID:    uuid.NewString(),
	}, nil
}

// NewFromEnv builds a Relay using envdecode to populate Config.
func NewFromEnv(ctx context.Context) (*Relay, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("redis relay config: %w", err)
	}
	return New(ctx, cfg)
}

// Close closes the subscription and the Redis client.
func (r *Relay) Close() error {
	return errors.Join(r.pubsub.Close(), r.client.Close())
}

// NodeID identifies this relay in ownership records.
func (r *Relay) NodeID() string { return r.nodeID }

// --- Key helpers ---

func (r *Relay) ownerKey(sessionID string) string { return r.keyPrefix + "owner:" + sessionID }
func (r *Relay) channel(sessionID string) string  { return r.keyPrefix + "deliver:" + sessionID }

func (r *Relay) Claim(ctx context.Context, sessionID string) error {
	ok, err := r.client.SetNX(ctx, r.ownerKey(sessionID), r.nodeID, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("claim session: %w", err)
	}
	if !ok {
		owner, err := r.client.Get(ctx, r.ownerKey(sessionID)).Result()
		if err == nil && owner == r.nodeID {
			return nil
		}
		return sessions.ErrDuplicateSession
	}
	if err := r.pubsub.Subscribe(ctx, r.channel(sessionID)); err != nil {
		_, _ = releaseScript.Run(ctx, r.client, []string{r.ownerKey(sessionID)}, r.nodeID).Result()
		return fmt.Errorf("subscribe session: %w", err)
	}
	return nil
}

var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

func (r *Relay) Release(ctx context.Context, sessionID string) error {
	res, err := releaseScript.Run(ctx, r.client, []string{r.ownerKey(sessionID)}, r.nodeID).Int()
	if err != nil {
		return fmt.Errorf("release session: %w", err)
	}
	if res == 0 {
		return nil
	}
	if err := r.pubsub.Unsubscribe(ctx, r.channel(sessionID)); err != nil {
		return fmt.Errorf("unsubscribe session: %w", err)
	}
	return nil
}

func (r *Relay) Forward(ctx context.Context, sessionID string, payload []byte) error {
	n, err := r.client.Publish(ctx, r.channel(sessionID), payload).Result()
	if err != nil {
		return fmt.Errorf("forward delivery: %w", err)
	}
	if n == 0 {
		return sessions.ErrSessionNotFound
	}
	return nil
}

func (r *Relay) Listen(ctx context.Context, fn sessions.ForwardHandler) error {
	ch := r.pubsub.Channel()
	prefix := r.keyPrefix + "deliver:"
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			sessionID, found := strings.CutPrefix(msg.Channel, prefix)
			if !found {
				continue
			}
			fn(ctx, sessionID, []byte(msg.Payload))
		}
	}
}
