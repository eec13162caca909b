package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisOptions names the keys a redis backed store uses.
type RedisOptions struct {
	KeyPrefix     string
	ChangeChannel string
}

type redisBackend struct {
	client     *redis.Client
	prefix     string
	channel    string
	maxRetries int
	hub        *Hub
	sub        *redis.PubSub
	wg         sync.WaitGroup
}

// NewRedis returns a store keeping one JSON string per document plus, for
// every ancestor path, a sorted set of the documents below it for subtree scans. Changes are published on
// ChangeChannel so every instance sharing the database notifies its subscribers.
func NewRedis(ctx context.Context, client *redis.Client, ropts RedisOptions, opts ...Option) (*Engine, error) {
	if client == nil {
		return nil, errors.New("docstore: redis client is required")
	}
	if ropts.KeyPrefix == "" {
		ropts.KeyPrefix = "doc"
	}
	if ropts.ChangeChannel == "" {
		ropts.ChangeChannel = ropts.KeyPrefix + ":changes"
	}
	o := buildOptions(opts)
	hub := NewHub()
	b := &redisBackend{
		client:     client,
		prefix:     ropts.KeyPrefix,
		channel:    ropts.ChangeChannel,
		maxRetries: o.maxRetries,
		hub:        hub,
	}

	sub := client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.sub = sub
	b.wg.Add(1)
	go b.relay(o)

	return newEngine(b, hub, o), nil
}

func (b *redisBackend) relay(o options) {
	defer b.wg.Done()
	for msg := range b.sub.Channel() {
		var paths []string
		if err := json.Unmarshal([]byte(msg.Payload), &paths); err != nil {
			if o.logg != nil {
				o.logg.Error(context.Background(), "docstore.relay_decode_failed", err)
			}
			continue
		}
		b.hub.Notify(paths)
	}
}

func (b *redisBackend) docKey(path string) string {
	return b.prefix + ":" + path
}

// indexKey names the sorted set listing every document below ancestor.
func (b *redisBackend) indexKey(ancestor string) string {
	return b.prefix + ":index:" + ancestor
}

func (b *redisBackend) view(ctx context.Context, fn func(r reader) error) error {
	return fn(&redisReader{backend: b, cmds: b.client})
}

// transact watches only the document keys and indexes fn actually reads, so
// writes to unrelated subtrees never abort each other.
func (b *redisBackend) transact(ctx context.Context, fn func(r reader) (map[string][]byte, error)) error {
	for attempt := 0; attempt < b.maxRetries; attempt++ {
		err := b.client.Watch(ctx, func(tx *redis.Tx) error {
			writes, err := fn(&redisReader{backend: b, cmds: tx, tx: tx})
			if err != nil {
				return err
			}
			if len(writes) == 0 {
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for _, path := range sortedKeys(writes) {
					raw := writes[path]
					chain := lineage(path)
					ancestors := chain[:len(chain)-1]
					if raw == nil {
						pipe.Del(ctx, b.docKey(path))
						for _, ancestor := range ancestors {
							pipe.ZRem(ctx, b.indexKey(ancestor), path)
						}
						continue
					}
					pipe.Set(ctx, b.docKey(path), raw, 0)
					for _, ancestor := range ancestors {
						pipe.ZAdd(ctx, b.indexKey(ancestor), redis.Z{Score: 0, Member: path})
					}
				}
				return nil
			})
			return err
		})
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrContention
}

func (b *redisBackend) publish(ctx context.Context, paths []string) error {
	payload, err := json.Marshal(paths)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

func (b *redisBackend) ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *redisBackend) close() error {
	err := b.sub.Close()
	b.wg.Wait()
	return err
}

type redisReadCmds interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	ZRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

type redisReader struct {
	backend *redisBackend
	cmds    redisReadCmds
	// tx is set inside transactions; every key read is watched first.
	tx *redis.Tx
}

func (r *redisReader) getMany(ctx context.Context, paths []string) (map[string][]byte, error) {
	if len(paths) == 0 {
		return map[string][]byte{}, nil
	}
	keys := make([]string, len(paths))
	for i, p := range paths {
		keys[i] = r.backend.docKey(p)
	}
	if r.tx != nil {
		if err := r.tx.Watch(ctx, keys...).Err(); err != nil {
			return nil, err
		}
	}
	values, err := r.cmds.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(paths))
	for i, value := range values {
		if s, ok := value.(string); ok {
			out[paths[i]] = []byte(s)
		}
	}
	return out, nil
}

// scan reads the index of the scanned ancestor. Members share score 0, so
// ZRANGE returns them in path order.
func (r *redisReader) scan(ctx context.Context, prefix string) ([]entry, error) {
	index := r.backend.indexKey(strings.TrimSuffix(prefix, "/"))
	if r.tx != nil {
		if err := r.tx.Watch(ctx, index).Err(); err != nil {
			return nil, err
		}
	}
	members, err := r.cmds.ZRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}
	docs, err := r.getMany(ctx, members)
	if err != nil {
		return nil, err
	}
	out := make([]entry, 0, len(members))
	for _, p := range members {
		if raw, ok := docs[p]; ok {
			out = append(out, entry{path: p, raw: raw})
		}
	}
	return out, nil
}
