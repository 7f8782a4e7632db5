package models

import "regexp"

// InvalidYouTubeURLMessage is the client-facing message for a rejected video URL.
const InvalidYouTubeURLMessage = "Invalid YouTube URL. Please provide a valid YouTube video URL."

// Both patterns are anchored at the start only; trailing query parameters are accepted.
var youTubeURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(?:https?://)?(?:www\.)?youtube\.com/watch\?v=[\w-]+`),
	regexp.MustCompile(`^(?:https?://)?(?:www\.)?youtu\.be/[\w-]+`),
}

// IsYouTubeVideoURL reports whether s starts with a youtube.com/watch?v= or youtu.be/ video link.
func IsYouTubeVideoURL(s string) bool {
	for _, re := range youTubeURLPatterns {
		if re.MatchString(s) {
			return true
		}
	}

	return false
}
