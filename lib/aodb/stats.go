package aodb

import (
	"context"

	"github.com/ValentinKolb/aodb/lib/util"
)

// WriterStats describes one writer of a database
type WriterStats struct {
	Key        string `json:"key"`
	Length     uint64 `json:"length"`
	Authorized bool   `json:"authorized"`
	Writable   bool   `json:"writable"`
}

// Stats summarizes the state of a database
type Stats struct {
	Key     string        `json:"key"`
	Writers []WriterStats `json:"writers"`
	Heads   int           `json:"heads"`

	// Lengths summarizes the number of blocks per writer
	Lengths util.Stats `json:"lengths"`

	ValuesWritten int64 `json:"values_written"`
	AvgValueSize  int   `json:"avg_value_size"`
	P99ValueSize  int   `json:"p99_value_size"`

	CacheHits   uint64 `json:"cache_hits"`
	CacheMisses uint64 `json:"cache_misses"`
}

// Stats collects statistics about the database. Cache counters are shared
// by all databases of the process.
func (db *DB) Stats(ctx context.Context) (Stats, error) {
	heads, err := db.heads(ctx, false)
	if err != nil {
		return Stats{}, err
	}

	s := Stats{
		Key:           db.key.String(),
		Heads:         len(heads),
		ValuesWritten: db.sizes.GetCount(),
		AvgValueSize:  db.sizes.AverageSize(),
		P99ValueSize:  db.sizes.GetPercentileEstimate(99),
		CacheHits:     cacheHits.Get(),
		CacheMisses:   cacheMisses.Get(),
	}

	writers := db.snapshotWriters()
	lengths := make([]float64, len(writers))
	for i, w := range writers {
		n := w.length()
		lengths[i] = float64(n)
		s.Writers = append(s.Writers, WriterStats{
			Key:        w.Key().String(),
			Length:     n,
			Authorized: w.isAuthorized(),
			Writable:   w.feed.Writable(),
		})
	}
	s.Lengths = util.NewStats(lengths)
	return s, nil
}
