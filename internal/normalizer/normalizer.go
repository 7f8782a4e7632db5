// Package normalizer turns raw comment-actor records into canonical comments.
package normalizer

import (
	"time"

	"github.com/quillai/quill/internal/models"
)

const (
	defaultAuthor        = "Unknown"
	defaultType          = "comment"
	defaultRelativeTime  = "0 days ago"
	replyType            = "reply"
	embeddingTextPattern = "User %s on %s: %s"
)

// Clock returns the current instant. Tests inject a fixed clock.
type Clock func() time.Time

// Normalizer filters and converts raw comments. The zero value uses time.Now.
type Normalizer struct {
	now Clock
}

// New returns a Normalizer using the given clock; nil means time.Now.
func New(clock Clock) *Normalizer {
	if clock == nil {
		clock = time.Now
	}

	return &Normalizer{now: clock}
}

// Normalize drops channel-owner and reply records and converts the rest,
// preserving input order. It never fails: missing fields fall back to defaults.
func (n *Normalizer) Normalize(raw []models.RawComment) []models.CanonicalComment {
	now := time.Now
	if n != nil && n.now != nil {
		now = n.now
	}

	ref := now()
	out := make([]models.CanonicalComment, 0, len(raw))

	for i := range raw {
		item := &raw[i]
		if isExcluded(item) {
			continue
		}

		out = append(out, canonicalize(item, ref))
	}

	return out
}

// Normalize is a convenience wrapper using the wall clock.
func Normalize(raw []models.RawComment) []models.CanonicalComment {
	return New(nil).Normalize(raw)
}

func isExcluded(item *models.RawComment) bool {
	if item.AuthorIsChannelOwner != nil && *item.AuthorIsChannelOwner {
		return true
	}

	return item.Type != nil && *item.Type == replyType
}

func canonicalize(item *models.RawComment, ref time.Time) models.CanonicalComment {
	relative := stringOr(item.PublishedTimeText, defaultRelativeTime)

	return models.CanonicalComment{
		ID:               stringOr(item.CID, ""),
		Author:           stringOr(item.Author, defaultAuthor),
		Comment:          stringOr(item.Comment, ""),
		Date:             ResolveDate(relative, ref),
		VoteCount:        intOr(item.VoteCount),
		ReplyCount:       intOr(item.ReplyCount),
		Type:             stringOr(item.Type, defaultType),
		TextForEmbedding: EmbeddingText(stringOr(item.Author, ""), stringOr(item.PublishedTimeText, ""), stringOr(item.Comment, "")),
	}
}

func stringOr(v *string, fallback string) string {
	if v == nil {
		return fallback
	}

	return *v
}

func intOr(v *models.LooseInt) int {
	if v == nil {
		return 0
	}

	return int(*v)
}
