package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// RawComment is one dataset item produced by the YouTube comments actor.
// Every field is optional; absent fields stay nil so the normalizer can apply defaults.
type RawComment struct {
	CID                  *string   `json:"cid"`
	Author               *string   `json:"author"`
	Comment              *string   `json:"comment"`
	PublishedTimeText    *string   `json:"publishedTimeText"`
	VoteCount            *LooseInt `json:"voteCount"`
	ReplyCount           *LooseInt `json:"replyCount"`
	Type                 *string   `json:"type"`
	AuthorIsChannelOwner *bool     `json:"authorIsChannelOwner"`
}

// LooseInt decodes a JSON number or a numeric string. Anything else decodes to zero
// without failing the surrounding document.
type LooseInt int

// UnmarshalJSON implements json.Unmarshaler.
func (n *LooseInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0

		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*n = LooseInt(int(f))

		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
		if v, convErr := strconv.Atoi(s); convErr == nil {
			*n = LooseInt(v)

			return nil
		}
	}

	*n = 0

	return nil
}

// CanonicalComment is a filtered, normalized top-level comment ready for analysis.
type CanonicalComment struct {
	ID               string `json:"id"`
	Author           string `json:"author"`
	Comment          string `json:"comment"`
	Date             string `json:"date"`
	VoteCount        int    `json:"voteCount"`
	ReplyCount       int    `json:"replyCount"`
	Type             string `json:"type"`
	TextForEmbedding string `json:"text_for_embedding"`
}

// VectorMetadata is stored next to each comment vector.
type VectorMetadata struct {
	Author      string `json:"author"`
	CommentText string `json:"comment_text"`
	Date        string `json:"date"`
	VoteCount   int    `json:"voteCount"`
	ReplyCount  int    `json:"replyCount"`
}

// CommentVector is one (id, vector, metadata) triple written to a namespace.
type CommentVector struct {
	ID       string
	Vector   []float32
	Metadata VectorMetadata
}

// VectorMatch is a nearest-neighbour hit with cosine similarity (0..1).
type VectorMatch struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata VectorMetadata `json:"metadata"`
}
