package aodb

import "github.com/VictoriaMetrics/metrics"

var (
	puts        = metrics.NewCounter(`aodb_entries_written_total`)
	batches     = metrics.NewCounter(`aodb_batches_total`)
	lookups     = metrics.NewCounter(`aodb_lookups_total`)
	decodes     = metrics.NewCounter(`aodb_entries_decoded_total`)
	inflates    = metrics.NewCounter(`aodb_feed_tables_written_total`)
	cacheHits   = metrics.NewCounter(`aodb_cache_hits_total`)
	cacheMisses = metrics.NewCounter(`aodb_cache_misses_total`)
	downloaded  = metrics.NewCounter(`aodb_blocks_downloaded_total`)

	batchDuration = metrics.NewHistogram(`aodb_batch_duration_seconds`)
)
