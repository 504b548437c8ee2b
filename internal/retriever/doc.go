// Package retriever coordinates indexing and similarity search over the
// content store.
//
// The Engine ties together the store, the batch embedding generator, and a
// TTL-bounded query-response cache. It is an explicitly constructed,
// dependency-injected component: callers build one at startup and pass it to
// every consumer.
//
//	engine := retriever.New(store, generator, retriever.Options{})
//
//	resp, err := engine.Search(ctx, retriever.SearchRequest{
//	    Query: "integration by parts",
//	    Limit: 5,
//	})
//
// Search is resilient to embedding-provider outages: a failed query
// embedding yields an empty response, never an error. Storage failures, by
// contrast, are always surfaced.
//
// The package also provides the source prioritizer, which merges candidates
// from four origin tiers into one ranked, deduplicated list.
package retriever
