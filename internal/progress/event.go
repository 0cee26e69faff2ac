package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageCrawlStart      Stage = "CRAWL_START"
	StageCrawlDone       Stage = "CRAWL_DONE"
	StagePageFetched     Stage = "PAGE_FETCHED"
	StagePageFailed      Stage = "PAGE_FAILED"
	StagePageSkipped     Stage = "PAGE_SKIPPED"
	StageRenderEscalated Stage = "RENDER_ESCALATED"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for page completions.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures a single milestone of crawl progress.
type Event struct {
	// CrawlID uniquely identifies a crawl run using the 16-byte UUID form.
	CrawlID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle or page milestone occurred.
	Stage Stage
	// Site scopes page events to a host label.
	Site string
	// URL is the page URL the event refers to, if any.
	URL string
	// Depth is the link distance from the seed for page events.
	Depth int
	// Bytes carries the response body size for fetched pages.
	Bytes int64
	// StatusClass groups HTTP response codes (2xx, 3xx, etc).
	StatusClass StatusClass
	// Rendered marks pages that went through the headless browser.
	Rendered bool
	// Dur captures fetch latency or total crawl runtime.
	Dur time.Duration
	// Note carries low-volume context such as error text or skip reason.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.CrawlID == [16]byte{} {
		return errors.New("crawl id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageCrawlStart, StageCrawlDone:
	case StagePageFetched:
		if e.URL == "" {
			return errors.New("page fetched requires url")
		}
		if e.StatusClass == "" {
			return errors.New("page fetched requires status class")
		}
	case StagePageFailed, StagePageSkipped, StageRenderEscalated:
		if e.URL == "" {
			return fmt.Errorf("%s requires url", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// CrawlUUID converts the binary crawl ID to uuid.UUID.
func (e Event) CrawlUUID() uuid.UUID {
	return uuid.UUID(e.CrawlID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// ClassifyStatus groups HTTP status codes for page events.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
