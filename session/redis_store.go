package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goSession/pepper"
)

const (
	rotateStatusNotFound       int64 = 0
	rotateStatusExpired        int64 = 1
	rotateStatusRevoked        int64 = 2
	rotateStatusDeviceMismatch int64 = 3
	rotateStatusReused         int64 = 4
	rotateStatusRotated        int64 = 5
	rotateStatusCorrupt        int64 = 6
)

// rotateScript is the per-family compare-and-rotate. All checks and the
// theft revocation run inside Redis, so two racing rotations are
// serialized by the script execution itself.
const rotateScript = `
local key = KEYS[1]
local family_id = ARGV[1]
local index_prefix = ARGV[2]
local presented = ARGV[3]
local next_id = ARGV[4]
local device = ARGV[5]
local have_device = ARGV[6]
local now_unix = tonumber(ARGV[7])

local fields = redis.call("HMGET", key, "rid", "rv", "dh", "ex", "tid")
local rid = fields[1]
if not rid then
  return {0}
end
local rv = fields[2]
local dh = fields[3]
local ex = tonumber(fields[4])
local tid = fields[5]
if not ex or not tid then
  return {6}
end

local index_key = index_prefix .. tid

if ex <= now_unix then
  redis.call("DEL", key)
  redis.call("ZREM", index_key, family_id)
  return {1}
end

if rv == "1" then
  return {2}
end

if dh ~= "" and (have_device ~= "1" or dh ~= device) then
  return {3}
end

if rid ~= presented then
  redis.call("HSET", key, "rv", "1")
  redis.call("ZREM", index_key, family_id)
  return {4}
end

redis.call("HSET", key, "rid", next_id, "lu", now_unix)
if have_device == "1" and dh == "" then
  redis.call("HSET", key, "dh", device)
end
redis.call("ZADD", index_key, now_unix, family_id)

local updated = redis.call("HGETALL", key)
table.insert(updated, 1, 5)
return updated
`

var rotateLua = redis.NewScript(rotateScript)

// reissueScript installs a fresh current token id on a live family.
// Unusable families (absent, expired, revoked, other device) report a
// single status so re-login falls back to a new family.
const reissueScript = `
local key = KEYS[1]
local family_id = ARGV[1]
local index_prefix = ARGV[2]
local next_id = ARGV[3]
local device = ARGV[4]
local have_device = ARGV[5]
local now_unix = tonumber(ARGV[6])

local fields = redis.call("HMGET", key, "rid", "rv", "dh", "ex", "tid")
if not fields[1] then
  return {0}
end
local rv = fields[2]
local dh = fields[3]
local ex = tonumber(fields[4])
local tid = fields[5]
if not ex or not tid then
  return {0}
end
if ex <= now_unix or rv == "1" then
  return {0}
end
if dh ~= "" and (have_device ~= "1" or dh ~= device) then
  return {0}
end

redis.call("HSET", key, "rid", next_id, "lu", now_unix)
if have_device == "1" and dh == "" then
  redis.call("HSET", key, "dh", device)
end
redis.call("ZADD", index_prefix .. tid, now_unix, family_id)

local updated = redis.call("HGETALL", key)
table.insert(updated, 1, 5)
return updated
`

var reissueLua = redis.NewScript(reissueScript)

const revokeScript = `
local key = KEYS[1]
local family_id = ARGV[1]
local index_prefix = ARGV[2]

local tid = redis.call("HGET", key, "tid")
if not tid then
  return 0
end
redis.call("HSET", key, "rv", "1")
redis.call("ZREM", index_prefix .. tid, family_id)
return 1
`

var revokeLua = redis.NewScript(revokeScript)

const touchScript = `
local key = KEYS[1]
local family_id = ARGV[1]
local index_prefix = ARGV[2]
local now_unix = tonumber(ARGV[3])

local tid = redis.call("HGET", key, "tid")
if not tid then
  return 0
end
redis.call("HSET", key, "lu", now_unix)
redis.call("ZADD", index_prefix .. tid, now_unix, family_id)
return 1
`

var touchLua = redis.NewScript(touchScript)

// RedisStore keeps each family as a Redis hash with a TTL matching its
// absolute expiry, plus a per-tenant sorted set scored by last-used
// time for counting and least-recently-used eviction.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore creates a RedisStore over client. prefix namespaces all
// keys; pass "" for the default "gs".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "gs"
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) key(familyID string) string {
	return s.prefix + ":" + familyID
}

func (s *RedisStore) indexPrefix() string {
	return s.prefix + "i:"
}

func (s *RedisStore) indexKey(tenantID string) string {
	return s.indexPrefix() + tenantID
}

func (s *RedisStore) Create(ctx context.Context, sess *Session) error {
	fields := encodeFields(sess)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key(sess.FamilyID), fields)
		pipe.PExpireAt(ctx, s.key(sess.FamilyID), sess.ExpiresAt)
		pipe.ZAdd(ctx, s.indexKey(sess.TenantID), redis.Z{
			Score:  float64(sess.LastUsedAt.Unix()),
			Member: sess.FamilyID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, familyID string) (*Session, error) {
	raw, err := s.redis.HGetAll(ctx, s.key(familyID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(raw) == 0 {
		return nil, ErrNotFound
	}
	sess, err := decodeFields(familyID, raw)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *RedisStore) Rotate(ctx context.Context, req RotateRequest) (RotateOutcome, *Session, error) {
	result, err := rotateLua.Run(ctx, s.redis,
		[]string{s.key(req.FamilyID)},
		req.FamilyID,
		s.indexPrefix(),
		req.PresentedTokenID,
		req.NextTokenID,
		deviceArg(req.DeviceDigest, req.HaveDevice),
		boolArg(req.HaveDevice),
		req.Now.Unix(),
	).Result()
	if err != nil {
		return RotateNotFound, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	status, rest, err := splitScriptResult(result)
	if err != nil {
		return RotateNotFound, nil, err
	}

	switch status {
	case rotateStatusNotFound:
		return RotateNotFound, nil, nil
	case rotateStatusExpired:
		return RotateExpired, nil, nil
	case rotateStatusRevoked:
		return RotateRevoked, nil, nil
	case rotateStatusDeviceMismatch:
		return RotateDeviceMismatch, nil, nil
	case rotateStatusReused:
		return RotateReused, nil, nil
	case rotateStatusRotated:
		sess, err := decodeFields(req.FamilyID, pairsToMap(rest))
		if err != nil {
			return RotateNotFound, nil, err
		}
		return RotateOK, sess, nil
	default:
		return RotateNotFound, nil, fmt.Errorf("%w: rotate status %d", ErrCorrupt, status)
	}
}

func (s *RedisStore) Reissue(ctx context.Context, req ReissueRequest) (*Session, error) {
	result, err := reissueLua.Run(ctx, s.redis,
		[]string{s.key(req.FamilyID)},
		req.FamilyID,
		s.indexPrefix(),
		req.NextTokenID,
		deviceArg(req.DeviceDigest, req.HaveDevice),
		boolArg(req.HaveDevice),
		req.Now.Unix(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	status, rest, err := splitScriptResult(result)
	if err != nil {
		return nil, err
	}
	if status != rotateStatusRotated {
		return nil, ErrNotFound
	}
	return decodeFields(req.FamilyID, pairsToMap(rest))
}

func (s *RedisStore) Revoke(ctx context.Context, familyID string) error {
	err := revokeLua.Run(ctx, s.redis,
		[]string{s.key(familyID)},
		familyID,
		s.indexPrefix(),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) RevokeAllForTenant(ctx context.Context, tenantID string) ([]string, error) {
	indexKey := s.indexKey(tenantID)
	familyIDs, err := s.redis.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(familyIDs) == 0 {
		return nil, nil
	}

	// Not fully atomic: a family created between the index read and the
	// pipeline below is missed. It will be caught by the next call or
	// expire naturally.
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, familyID := range familyIDs {
			pipe.HSet(ctx, s.key(familyID), "rv", "1")
		}
		pipe.Del(ctx, indexKey)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return familyIDs, nil
}

func (s *RedisStore) CountActive(ctx context.Context, tenantID string) (int, error) {
	live, err := s.liveFamilies(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	return len(live), nil
}

func (s *RedisStore) OldestActive(ctx context.Context, tenantID string, n int) ([]*Session, error) {
	if n <= 0 {
		return nil, nil
	}
	live, err := s.liveFamilies(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	sessions := make([]*Session, 0, n)
	for _, familyID := range live {
		sess, err := s.Get(ctx, familyID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
		if len(sessions) == n {
			break
		}
	}
	return sessions, nil
}

func (s *RedisStore) Touch(ctx context.Context, familyID string, now time.Time) error {
	err := touchLua.Run(ctx, s.redis,
		[]string{s.key(familyID)},
		familyID,
		s.indexPrefix(),
		now.Unix(),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// DeleteExpired prunes index members whose session hash has already
// been expired by Redis. Session keys themselves carry a native TTL.
func (s *RedisStore) DeleteExpired(ctx context.Context, _ time.Time) (int, error) {
	var pruned int
	iter := s.redis.Scan(ctx, 0, s.indexPrefix()+"*", 100).Iterator()
	for iter.Next(ctx) {
		indexKey := iter.Val()
		tenantID := indexKey[len(s.indexPrefix()):]
		removed, err := s.pruneIndex(ctx, tenantID)
		if err != nil {
			return pruned, err
		}
		pruned += removed
	}
	if err := iter.Err(); err != nil {
		return pruned, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return pruned, nil
}

// liveFamilies returns the tenant's indexed families ordered by
// last-used time, pruning entries whose session key has expired.
func (s *RedisStore) liveFamilies(ctx context.Context, tenantID string) ([]string, error) {
	familyIDs, err := s.redis.ZRange(ctx, s.indexKey(tenantID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(familyIDs) == 0 {
		return nil, nil
	}

	pipe := s.redis.Pipeline()
	existsCmds := make([]*redis.IntCmd, len(familyIDs))
	for i, familyID := range familyIDs {
		existsCmds[i] = pipe.Exists(ctx, s.key(familyID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	live := make([]string, 0, len(familyIDs))
	var stale []interface{}
	for i, cmd := range existsCmds {
		v, cmdErr := cmd.Result()
		if cmdErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, cmdErr)
		}
		if v == 1 {
			live = append(live, familyIDs[i])
		} else {
			stale = append(stale, familyIDs[i])
		}
	}
	if len(stale) > 0 {
		if err := s.redis.ZRem(ctx, s.indexKey(tenantID), stale...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return live, nil
}

func (s *RedisStore) pruneIndex(ctx context.Context, tenantID string) (int, error) {
	familyIDs, err := s.redis.ZRange(ctx, s.indexKey(tenantID), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	before := len(familyIDs)
	live, err := s.liveFamilies(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	return before - len(live), nil
}

func encodeFields(sess *Session) map[string]interface{} {
	deviceHex := ""
	if sess.DeviceBound {
		deviceHex = hex.EncodeToString(sess.DeviceHash[:])
	}
	revoked := "0"
	if sess.Revoked {
		revoked = "1"
	}
	return map[string]interface{}{
		"tid":  sess.TenantID,
		"sub":  sess.Subject,
		"role": sess.Role,
		"av":   strconv.FormatUint(uint64(sess.AccountVersion), 10),
		"rid":  sess.RefreshTokenID,
		"dh":   deviceHex,
		"rv":   revoked,
		"ca":   strconv.FormatInt(sess.CreatedAt.Unix(), 10),
		"lu":   strconv.FormatInt(sess.LastUsedAt.Unix(), 10),
		"ex":   strconv.FormatInt(sess.ExpiresAt.Unix(), 10),
		"ip":   sess.Created.IP,
		"ua":   sess.Created.UserAgent,
		"dl":   sess.Created.DeviceLabel,
		"loc":  sess.Created.Location,
	}
}

func decodeFields(familyID string, raw map[string]string) (*Session, error) {
	sess := &Session{
		FamilyID:       familyID,
		TenantID:       raw["tid"],
		Subject:        raw["sub"],
		Role:           raw["role"],
		RefreshTokenID: raw["rid"],
		Revoked:        raw["rv"] == "1",
		Created: Context{
			IP:          raw["ip"],
			UserAgent:   raw["ua"],
			DeviceLabel: raw["dl"],
			Location:    raw["loc"],
		},
	}
	if sess.TenantID == "" || sess.RefreshTokenID == "" {
		return nil, fmt.Errorf("%w: missing required fields", ErrCorrupt)
	}

	av, err := strconv.ParseUint(raw["av"], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: account version: %v", ErrCorrupt, err)
	}
	sess.AccountVersion = uint32(av)

	for _, field := range []struct {
		name string
		dst  *time.Time
	}{
		{"ca", &sess.CreatedAt},
		{"lu", &sess.LastUsedAt},
		{"ex", &sess.ExpiresAt},
	} {
		unix, err := strconv.ParseInt(raw[field.name], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: field %s: %v", ErrCorrupt, field.name, err)
		}
		*field.dst = time.Unix(unix, 0).UTC()
	}

	if deviceHex := raw["dh"]; deviceHex != "" {
		decoded, err := hex.DecodeString(deviceHex)
		if err != nil || len(decoded) != pepper.DigestSize {
			return nil, fmt.Errorf("%w: device hash", ErrCorrupt)
		}
		copy(sess.DeviceHash[:], decoded)
		sess.DeviceBound = true
	}

	return sess, nil
}

func deviceArg(digest pepper.Digest, have bool) string {
	if !have {
		return ""
	}
	return hex.EncodeToString(digest[:])
}

func boolArg(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func splitScriptResult(result interface{}) (int64, []interface{}, error) {
	values, ok := result.([]interface{})
	if !ok || len(values) == 0 {
		return 0, nil, fmt.Errorf("%w: unexpected script reply", ErrCorrupt)
	}
	status, ok := values[0].(int64)
	if !ok {
		return 0, nil, fmt.Errorf("%w: unexpected script status", ErrCorrupt)
	}
	return status, values[1:], nil
}

func pairsToMap(pairs []interface{}) map[string]string {
	raw := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		key, kok := pairs[i].(string)
		value, vok := pairs[i+1].(string)
		if kok && vok {
			raw[key] = value
		}
	}
	return raw
}
