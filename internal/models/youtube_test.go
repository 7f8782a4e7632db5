package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsYouTubeVideoURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"http://youtube.com/watch?v=abc_123-x", true},
		{"youtube.com/watch?v=abc", true},
		{"https://youtu.be/dQw4w9WgXcQ", true},
		{"youtu.be/abc?t=42", true},
		{"https://www.youtube.com/watch?v=abc&list=PL1", true},
		{"https://m.youtube.com/watch?v=abc", false},
		{"https://www.youtube.com/channel/UC123", false},
		{"https://vimeo.com/123", false},
		{"see https://youtu.be/abc", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, IsYouTubeVideoURL(tt.url))
		})
	}
}
