package source

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"
)

// Posting is one job listing with its full description text. Immutable once
// fetched.
type Posting struct {
	ID          string
	Title       string
	Company     string
	Location    string
	Description string
	URL         string
	Source      string
	FetchedAt   time.Time
}

// PostingRef is a lightweight handle returned by enumeration: enough to fetch
// the full posting and to show a preview in logs.
type PostingRef struct {
	// Handle is the source-local identifier the adapter needs to fetch the
	// full text. Opaque outside the adapter that produced it.
	Handle   string
	URL      string
	Title    string
	Company  string
	Location string
}

// AuthContext carries a source-specific credential blob (a token, serialized
// cookies). The content is opaque to everything but the adapter it is handed
// to.
type AuthContext struct {
	Blob string
}

// Adapter is the per-site scraping capability. Implementations must be
// stateless across calls apart from the AuthContext injected at construction.
type Adapter interface {
	Name() string
	Enumerate(ctx context.Context, query string) ([]*PostingRef, error)
	FetchFullText(ctx context.Context, ref *PostingRef) (*Posting, error)
}

// PostingID derives the stable posting identifier from the source name and the
// posting URL.
func PostingID(sourceName, url string) string {
	sum := sha256.Sum256([]byte(sourceName + "|" + url))
	return fmt.Sprintf("%x", sum[:12])
}
