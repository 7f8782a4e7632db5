package normalizer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar-day format of CanonicalComment.Date.
const DateLayout = "2006-01-02"

// maxMagnitude bounds parsed magnitudes so offsets cannot overflow time arithmetic.
const maxMagnitude = 100000

var magnitudePattern = regexp.MustCompile(`\d+`)

type relativeUnit struct {
	keyword string
	seconds int64
	days    int
}

// Checked in order; the first keyword contained in the text wins.
// Months and years are fixed 30 and 365 day approximations.
var relativeUnits = []relativeUnit{
	{keyword: "second", seconds: 1},
	{keyword: "minute", seconds: 60},
	{keyword: "hour", seconds: 3600},
	{keyword: "day", days: 1},
	{keyword: "week", days: 7},
	{keyword: "month", days: 30},
	{keyword: "year", days: 365},
}

// ResolveDate converts a phrase like "5 days ago" into the YYYY-MM-DD date
// relative to ref. Unknown units resolve to ref's date; a missing number counts as 0.
// Units match case-insensitively: "3 Days ago" is three days back.
func ResolveDate(text string, ref time.Time) string {
	lower := strings.ToLower(text)
	n := magnitude(lower)

	for _, u := range relativeUnits {
		if !strings.Contains(lower, u.keyword) {
			continue
		}

		if u.days > 0 {
			return ref.AddDate(0, 0, -n*u.days).Format(DateLayout)
		}

		offset := time.Duration(int64(n)*u.seconds) * time.Second

		return ref.Add(-offset).Format(DateLayout)
	}

	return ref.Format(DateLayout)
}

func magnitude(text string) int {
	digits := magnitudePattern.FindString(text)
	if digits == "" {
		return 0
	}

	n, err := strconv.Atoi(digits)
	if err != nil || n > maxMagnitude {
		return maxMagnitude
	}

	return n
}

// EmbeddingText builds the embedding input from the original author,
// relative-time phrase and body.
func EmbeddingText(author, publishedTimeText, comment string) string {
	return fmt.Sprintf(embeddingTextPattern, author, publishedTimeText, comment)
}
