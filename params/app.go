package params

import (
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
)

var DefaultDatadirRoot = func() string {
	home, err := homedir.Dir()
	if err != nil {
		return filepath.Join(os.TempDir(), "trackd")
	}
	return filepath.Join(home, ".trackd")
}()

// CacheLastKnownTTL bounds how long a last-known session snapshot is served
// after updates stop arriving.
var CacheLastKnownTTL = 1 * time.Hour

// DedupeCacheSize is the LRU size for ingest fix deduplication.
var DedupeCacheSize = 10_000

var (
	INFLUXDB_URL    = os.Getenv("TRACKD_INFLUXDB_URL")
	INFLUXDB_TOKEN  = os.Getenv("TRACKD_INFLUXDB_TOKEN")
	INFLUXDB_ORG    = os.Getenv("TRACKD_INFLUXDB_ORG")
	INFLUXDB_BUCKET = os.Getenv("TRACKD_INFLUXDB_BUCKET")

	AWS_BUCKETNAME = os.Getenv("TRACKD_AWS_BUCKETNAME")
)
