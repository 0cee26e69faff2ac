package crawler

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrontierAddDedupesNormalizedForms(t *testing.T) {
	f := NewFrontier("https://example.com")

	assert.True(t, f.Add("https://example.com/page", 1))
	assert.False(t, f.Add("HTTPS://EXAMPLE.COM/Page/", 1))
	assert.False(t, f.Add("https://example.com/page?utm=1", 1))
	assert.Equal(t, 1, f.Size())
}

func TestFrontierRejectsForeignAndMedia(t *testing.T) {
	f := NewFrontier("https://example.com")

	assert.False(t, f.Add("https://other.com/page", 1))
	assert.False(t, f.Add("https://example.com/photo.jpg", 1))
	assert.False(t, f.Add("://bad", 1))
	assert.Equal(t, 0, f.Size())
}

func TestFrontierMatchesBasePathPrefix(t *testing.T) {
	f := NewFrontier("https://example.com/blog")

	assert.True(t, f.Add("https://example.com/blog/post-1", 1))
	assert.False(t, f.Add("https://example.com/shop/item", 1))
}

func TestFrontierNextMovesToInflight(t *testing.T) {
	f := NewFrontier("https://example.com")
	f.Add("https://example.com/a", 1)

	job, ok := f.Next()
	require.True(t, ok)
	assert.Equal(t, "https://example.com/a", job.URL)
	assert.Equal(t, 0, f.Size())

	// in-flight blocks re-admission
	assert.False(t, f.Add("https://example.com/a", 1))

	_, ok = f.Next()
	assert.False(t, ok)
}

func TestFrontierVisitedIsPermanent(t *testing.T) {
	f := NewFrontier("https://example.com")
	f.Add("https://example.com/a", 1)
	job, _ := f.Next()
	f.MarkVisited(job.URL)

	assert.True(t, f.IsVisited("https://example.com/a"))
	assert.True(t, f.IsVisited("HTTPS://example.com/A/"))
	assert.False(t, f.Add("https://example.com/a", 2))
	assert.Equal(t, 1, f.VisitedCount())
}

func TestFrontierReturnToPoolFrontPriority(t *testing.T) {
	f := NewFrontier("https://example.com")
	f.Add("https://example.com/first", 1)
	f.Add("https://example.com/second", 1)

	job, ok := f.Next()
	require.True(t, ok)
	require.Equal(t, "https://example.com/first", job.URL)

	job.Attempts++
	f.ReturnToPool(job)

	next, ok := f.Next()
	require.True(t, ok)
	assert.Equal(t, "https://example.com/first", next.URL)
	assert.Equal(t, 1, next.Attempts)
}

func TestFrontierReturnToPoolIgnoresVisited(t *testing.T) {
	f := NewFrontier("https://example.com")
	f.Add("https://example.com/a", 1)
	job, _ := f.Next()
	f.MarkVisited(job.URL)

	f.ReturnToPool(job)
	assert.Equal(t, 0, f.Size())
}

func TestFrontierConcurrentAddNoDuplicates(t *testing.T) {
	f := NewFrontier("https://example.com")

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				f.Add(fmt.Sprintf("https://example.com/page-%d", i), 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, f.Size())
}
