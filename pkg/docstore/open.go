package docstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/buildmart-backend/pkg/config"
	"github.com/angelmondragon/buildmart-backend/pkg/logger"
)

// OpenParams carries the clients a configured backend may need.
type OpenParams struct {
	Config   config.DocStoreConfig
	Redis    *redis.Client
	SQL      SQLConn
	Observer Observer
	Logger   *logger.Logger
}

// Open builds the configured backend and layers the observer and breaker on top.
// The returned close func releases the backend's subscriptions.
func Open(ctx context.Context, params OpenParams) (Store, func() error, error) {
	cfg := params.Config
	opts := []Option{WithMaxRetries(cfg.MaxRetries), WithLogger(params.Logger)}

	var (
		base *Engine
		err  error
	)
	switch strings.ToLower(cfg.Backend) {
	case config.DocStoreBackendMemory:
		base = NewMemory(opts...)
	case config.DocStoreBackendRedis:
		base, err = NewRedis(ctx, params.Redis, RedisOptions{
			KeyPrefix:     cfg.KeyPrefix,
			ChangeChannel: cfg.ChangeChannel,
		}, opts...)
	case config.DocStoreBackendSQL:
		if params.SQL == nil {
			return nil, nil, fmt.Errorf("docstore: sql backend selected without a database client")
		}
		base, err = NewSQL(params.SQL, opts...)
	default:
		return nil, nil, fmt.Errorf("docstore: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, nil, err
	}

	store := WithObserver(base, params.Observer)
	if cfg.BreakerEnabled {
		store = WithBreaker(store, BreakerSettings{
			Name:         "docstore-" + strings.ToLower(cfg.Backend),
			MaxRequests:  cfg.BreakerMaxRequests,
			Interval:     cfg.BreakerInterval,
			Timeout:      cfg.BreakerTimeout,
			MinRequests:  cfg.BreakerMinRequests,
			FailureRatio: cfg.BreakerFailureRatio,
		}, params.Logger)
	}
	return store, base.Close, nil
}
