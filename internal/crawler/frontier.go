package crawler

import (
	"sync"

	"github.com/scrapeworks/wormy/internal/urlutil"
)

// Frontier is the single source of truth for what remains to crawl and what
// has been crawled. A URL lives in at most one of {pending, in-flight,
// visited}; once visited it never re-enters the pool. One lock guards the
// combined state so two workers can never both admit or both drain the same
// entry.
type Frontier struct {
	mu sync.Mutex

	baseURL  string
	pending  []Job
	queued   map[string]struct{}
	inflight map[string]struct{}
	visited  map[string]struct{}
}

// NewFrontier builds a Frontier scoped to the given (normalized) base URL.
// Admission only accepts URLs living under it.
func NewFrontier(baseURL string) *Frontier {
	return &Frontier{
		baseURL:  baseURL,
		queued:   make(map[string]struct{}),
		inflight: make(map[string]struct{}),
		visited:  make(map[string]struct{}),
	}
}

// Add normalizes a URL and appends it to the pending queue if it belongs to
// the site and is not already pending, in-flight, or visited. It reports
// whether the URL was admitted; every rejection is a silent no-op.
func (f *Frontier) Add(rawURL string, depth int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.admit(rawURL, depth)
}

// AddBulk admits each URL in turn and returns how many entered the queue.
func (f *Frontier) AddBulk(rawURLs []string, depth int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	admitted := 0
	for _, raw := range rawURLs {
		if f.admit(raw, depth) {
			admitted++
		}
	}
	return admitted
}

// admit holds the invariant checks; callers hold f.mu.
func (f *Frontier) admit(rawURL string, depth int) bool {
	normalized, err := urlutil.Normalize(rawURL)
	if err != nil {
		return false
	}
	if !urlutil.SameSite(normalized, f.baseURL) || !urlutil.MatchesBase(normalized, f.baseURL) {
		return false
	}
	if _, ok := f.visited[normalized]; ok {
		return false
	}
	if _, ok := f.queued[normalized]; ok {
		return false
	}
	if _, ok := f.inflight[normalized]; ok {
		return false
	}
	f.queued[normalized] = struct{}{}
	f.pending = append(f.pending, Job{URL: normalized, Raw: rawURL, Depth: depth})
	return true
}

// Next removes and returns the job at the front of the queue, moving its
// URL to the in-flight set. The second return is false when the queue is
// empty.
func (f *Frontier) Next() (Job, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) == 0 {
		return Job{}, false
	}
	job := f.pending[0]
	f.pending = f.pending[1:]
	delete(f.queued, job.URL)
	f.inflight[job.URL] = struct{}{}
	return job, true
}

// MarkVisited moves a URL into the visited set. From then on Add for that
// URL is permanently a no-op.
func (f *Frontier) MarkVisited(rawURL string) {
	normalized, err := urlutil.Normalize(rawURL)
	if err != nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.inflight, normalized)
	delete(f.queued, normalized)
	f.visited[normalized] = struct{}{}
}

// ReturnToPool reinserts an in-flight job at the front of the queue, giving
// it priority over fresh discoveries. Used when a fetch attempt failed
// transiently and should be retried rather than abandoned.
func (f *Frontier) ReturnToPool(job Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.visited[job.URL]; ok {
		return
	}
	if _, ok := f.queued[job.URL]; ok {
		return
	}
	delete(f.inflight, job.URL)
	f.queued[job.URL] = struct{}{}
	f.pending = append([]Job{job}, f.pending...)
}

// IsVisited reports whether a URL has been fully processed.
func (f *Frontier) IsVisited(rawURL string) bool {
	normalized, err := urlutil.Normalize(rawURL)
	if err != nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.visited[normalized]
	return ok
}

// Size returns the number of pending jobs.
func (f *Frontier) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// VisitedCount returns how many URLs have been fully processed.
func (f *Frontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}
