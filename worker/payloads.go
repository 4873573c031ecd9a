package worker

import (
	"time"

	"github.com/skyfare/skyfare/core"
)

// Queue names processed by the worker pool. Each maps to its own
// Redis stream.
const (
	QueueCrawlSingle   = "crawl_single"
	QueueCrawlParallel = "crawl_parallel"
	QueueMergeStore    = "merge_and_store"
)

// CrawlSinglePayload asks for one source to be crawled and its
// results stored.
type CrawlSinglePayload struct {
	Request core.SearchRequest `json:"request"`
	Source  string             `json:"source"`
}

// CrawlParallelPayload fans a search out across sources. The crawl
// results chord into a merge_and_store job rather than being merged
// inline, so a slow store never holds a crawl worker.
type CrawlParallelPayload struct {
	Request core.SearchRequest `json:"request"`
	Sources []string           `json:"sources,omitempty"`
}

// MergeStorePayload carries raw crawl envelopes into the merge and
// persistence stage.
type MergeStorePayload struct {
	Results []core.CrawlResult `json:"results"`
}

// StoreSummary describes what a merge_and_store job wrote.
type StoreSummary struct {
	StoredCount int       `json:"stored_count"`
	MergedCount int       `json:"merged_count"`
	Sources     []string  `json:"sources"`
	Timestamp   time.Time `json:"timestamp"`
}
