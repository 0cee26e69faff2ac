// Package crawler implements the crawl orchestration engine: the shared URL
// frontier, the worker pool that drains it, the fetch pipeline with its
// static-to-rendered escalation, and the aggregation of page records.
package crawler
