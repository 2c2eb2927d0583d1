package redis

import "github.com/redis/go-redis/v9"

// upsertScript merge-adds an ingredient stored as JSON in a hash field.
// KEYS[1] inventory hash, ARGV[1] name, ARGV[2] incoming ingredient JSON.
var upsertScript = redis.NewScript(`
local incoming = cjson.decode(ARGV[2])
local current = redis.call('HGET', KEYS[1], ARGV[1])
if current then
  local existing = cjson.decode(current)
  incoming['count'] = existing['count'] + incoming['count']
end
redis.call('HSET', KEYS[1], ARGV[1], cjson.encode(incoming))
return 1
`)

// decrementScript subtracts from an ingredient and deletes it at or below
// zero. Returns -1 when missing, 1 when removed, 0 otherwise.
// KEYS[1] inventory hash, ARGV[1] name, ARGV[2] amount.
var decrementScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], ARGV[1])
if not current then
  return -1
end
local ing = cjson.decode(current)
ing['count'] = ing['count'] - tonumber(ARGV[2])
if ing['count'] <= 0 then
  redis.call('HDEL', KEYS[1], ARGV[1])
  return 1
end
redis.call('HSET', KEYS[1], ARGV[1], cjson.encode(ing))
return 0
`)
