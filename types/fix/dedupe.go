package fix

import (
	"fmt"

	"github.com/golang/groupcache/lru"
	"github.com/mitchellh/hashstructure/v2"

	"github.com/runstr/trackd/params"
)

// NewDedupeLRUFunc returns a filter that reports true the first time it sees
// a fix and false for repeats. Mobile clients retry batch uploads, so the
// ingest path sees the same fixes more than once.
func NewDedupeLRUFunc() func(Fix) bool {
	var dedupeCache = lru.New(params.DedupeCacheSize)
	return func(f Fix) bool {
		hash, err := hashstructure.Hash(f, hashstructure.FormatV2, nil)
		if err != nil {
			return false
		}
		key := fmt.Sprintf("%d", hash)
		_, ok := dedupeCache.Get(key)
		if ok {
			return false
		}
		dedupeCache.Add(key, true)
		return true
	}
}
