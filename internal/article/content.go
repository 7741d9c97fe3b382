package article

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

type contentView struct {
	URL         string   `json:"url"`
	Fingerprint string   `json:"urlHash"`
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	Source      string   `json:"source"`
	Image       string   `json:"image"`
	PublishedAt string   `json:"publishedAt"`
	Entities    Entities `json:"entities"`
	Quality     Quality  `json:"quality"`
}

// ContentHash digests every field except identity and bookkeeping timestamps.
// Two articles with equal hashes are the same for upsert purposes.
func (a Article) ContentHash() string {
	normalized := a
	normalized.Normalize()

	view := contentView{
		URL:         normalized.URL,
		Fingerprint: normalized.Fingerprint,
		Title:       normalized.Title,
		Summary:     normalized.Summary,
		Source:      normalized.Source,
		PublishedAt: normalized.PublishedAt.Format(time.RFC3339Nano),
		Entities:    normalized.Entities,
		Quality:     normalized.Quality,
	}
	if normalized.Image != nil {
		view.Image = *normalized.Image
	}

	// json.Marshal sorts map keys, which makes the encoding canonical.
	encoded, err := json.Marshal(view)
	if err != nil {
		encoded = []byte(normalized.URL + "\x00" + normalized.Title + "\x00" + normalized.Summary)
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

// SameContent reports whether a and b differ only in ID and timestamps.
func SameContent(a, b Article) bool {
	return a.ContentHash() == b.ContentHash()
}
