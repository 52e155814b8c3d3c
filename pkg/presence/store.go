// Package presence is the Redis write-through store behind the in-memory
// presence tracker: an online set, per-user last-seen keys, and per-channel
// member sets served to the API's presence endpoint.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	onlineSetKey     = "users:online"
	lastSeenKeyFmt   = "user:%s:last_seen"
	channelUsersFmt  = "channel:%s:users"
	lastSeenTimeForm = time.RFC3339Nano
)

type Store struct {
	rdb *redis.Client
}

func NewStore(addr string) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{Addr: addr})}
}

func (s *Store) SetOnline(ctx context.Context, userID string) error {
	return s.rdb.SAdd(ctx, onlineSetKey, userID).Err()
}

func (s *Store) SetOffline(ctx context.Context, userID string, lastSeen time.Time) error {
	pipe := s.rdb.Pipeline()
	pipe.SRem(ctx, onlineSetKey, userID)
	pipe.Set(ctx, fmt.Sprintf(lastSeenKeyFmt, userID), lastSeen.UTC().Format(lastSeenTimeForm), 0)
	_, err := pipe.Exec(ctx)
	return err
}

// Online reports whether the user is in the online set.
func (s *Store) Online(ctx context.Context, userID string) (bool, error) {
	return s.rdb.SIsMember(ctx, onlineSetKey, userID).Result()
}

// LastSeen returns the recorded last-seen time; the zero time when the user
// never disconnected.
func (s *Store) LastSeen(ctx context.Context, userID string) (time.Time, error) {
	raw, err := s.rdb.Get(ctx, fmt.Sprintf(lastSeenKeyFmt, userID)).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(lastSeenTimeForm, raw)
}

// OnlineUsers lists every user currently in the online set.
func (s *Store) OnlineUsers(ctx context.Context) ([]string, error) {
	return s.rdb.SMembers(ctx, onlineSetKey).Result()
}

// AddChannelMember records a user in a channel's member set.
func (s *Store) AddChannelMember(ctx context.Context, channelID, userID string) error {
	return s.rdb.SAdd(ctx, fmt.Sprintf(channelUsersFmt, channelID), userID).Err()
}

// RemoveChannelMember drops a user from a channel's member set.
func (s *Store) RemoveChannelMember(ctx context.Context, channelID, userID string) error {
	return s.rdb.SRem(ctx, fmt.Sprintf(channelUsersFmt, channelID), userID).Err()
}

// ChannelMembers lists the users currently recorded in a channel.
func (s *Store) ChannelMembers(ctx context.Context, channelID string) ([]string, error) {
	return s.rdb.SMembers(ctx, fmt.Sprintf(channelUsersFmt, channelID)).Result()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}
