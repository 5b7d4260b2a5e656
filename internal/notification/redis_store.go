package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each inbox in three keys: a hash of encoded notifications, a sorted set
// for ordering and a set of unread ids whose cardinality is the unread count.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "notifications"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) itemsKey(r uuid.UUID) string  { return fmt.Sprintf("%s:%s:items", s.prefix, r) }
func (s *RedisStore) orderKey(r uuid.UUID) string  { return fmt.Sprintf("%s:%s:order", s.prefix, r) }
func (s *RedisStore) unreadKey(r uuid.UUID) string { return fmt.Sprintf("%s:%s:unread", s.prefix, r) }

func (s *RedisStore) Add(ctx context.Context, n Notification) error {
	// the read flag lives in the unread set, not in the payload
	read := n.Read
	n.Read = false
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	id := n.ID.String()
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.itemsKey(n.RecipientID), id, payload)
		pipe.ZAdd(ctx, s.orderKey(n.RecipientID), redis.Z{Score: float64(n.Timestamp.UnixNano()), Member: id})
		if read {
			pipe.SRem(ctx, s.unreadKey(n.RecipientID), id)
		} else {
			pipe.SAdd(ctx, s.unreadKey(n.RecipientID), id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, recipient uuid.UUID) ([]Notification, error) {
	ids, err := s.client.ZRevRange(ctx, s.orderKey(recipient), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list notification ids: %w", err)
	}
	if len(ids) == 0 {
		return []Notification{}, nil
	}

	var (
		payloads *redis.SliceCmd
		unread   *redis.StringSliceCmd
	)
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		payloads = pipe.HMGet(ctx, s.itemsKey(recipient), ids...)
		unread = pipe.SMembers(ctx, s.unreadKey(recipient))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load notifications: %w", err)
	}

	unreadSet := make(map[string]bool, len(unread.Val()))
	for _, id := range unread.Val() {
		unreadSet[id] = true
	}

	out := make([]Notification, 0, len(ids))
	for i, raw := range payloads.Val() {
		str, ok := raw.(string)
		if !ok {
			// deleted between the two reads
			continue
		}
		var n Notification
		if err := json.Unmarshal([]byte(str), &n); err != nil {
			return nil, fmt.Errorf("decode notification %s: %w", ids[i], err)
		}
		n.Read = !unreadSet[ids[i]]
		out = append(out, n)
	}
	return out, nil
}

func (s *RedisStore) MarkRead(ctx context.Context, recipient, id uuid.UUID) error {
	exists, err := s.client.HExists(ctx, s.itemsKey(recipient), id.String()).Result()
	if err != nil {
		return fmt.Errorf("check notification: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	if err := s.client.SRem(ctx, s.unreadKey(recipient), id.String()).Err(); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

func (s *RedisStore) MarkAllRead(ctx context.Context, recipient uuid.UUID) (int, error) {
	var card *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		card = pipe.SCard(ctx, s.unreadKey(recipient))
		pipe.Del(ctx, s.unreadKey(recipient))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return int(card.Val()), nil
}

func (s *RedisStore) Delete(ctx context.Context, recipient, id uuid.UUID) error {
	var removed *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.HDel(ctx, s.itemsKey(recipient), id.String())
		pipe.ZRem(ctx, s.orderKey(recipient), id.String())
		pipe.SRem(ctx, s.unreadKey(recipient), id.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if removed.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) UnreadCount(ctx context.Context, recipient uuid.UUID) (int, error) {
	n, err := s.client.SCard(ctx, s.unreadKey(recipient)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return int(n), nil
}
