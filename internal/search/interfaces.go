package search

import (
	"context"
	"time"
)

// Backend is the upstream search collaborator. Each call returns hits in
// upstream order; internal retries and auth are the implementation's concern.
type Backend interface {
	Text(ctx context.Context, query Query) ([]Hit, error)
	News(ctx context.Context, query Query) ([]Hit, error)
	Images(ctx context.Context, query Query) ([]Hit, error)
	Videos(ctx context.Context, query Query) ([]Hit, error)
	Suggestions(ctx context.Context, text string, region string) ([]string, error)
	Name() string
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Transcripts retrieves timed caption segments for a video.
type Transcripts interface {
	Transcript(ctx context.Context, videoID string, languages []string) (Transcript, error)
}

// Hasher computes digests for cache keys.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces request IDs.
type IDGenerator interface {
	NewID() (string, error)
}
