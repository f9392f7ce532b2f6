package services

import (
	"hash/fnv"
	"sync"
)

// keyMutex serializes work per booking identifier with a fixed pool of
// sharded locks. Two different bookings almost always map to different
// shards and proceed in parallel; all mutations for one booking are
// strictly ordered.
type keyMutex struct {
	shards []sync.Mutex
}

func newKeyMutex(shardCount int) *keyMutex {
	if shardCount <= 0 {
		shardCount = 64
	}
	return &keyMutex{shards: make([]sync.Mutex, shardCount)}
}

func (k *keyMutex) Lock(key string) {
	k.shards[k.index(key)].Lock()
}

func (k *keyMutex) Unlock(key string) {
	k.shards[k.index(key)].Unlock()
}

func (k *keyMutex) index(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(k.shards)))
}
