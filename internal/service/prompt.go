package service

import (
	"fmt"
	"strings"

	"github.com/quillai/quill/internal/models"
)

const insightPromptHeader = `You are an expert data analyst specializing in social media sentiment analysis and lead generation.

Analyze the following %d YouTube comments and provide a comprehensive analysis.

IMPORTANT NOTES:
- Comments with high voteCount (likes) represent collective opinions of many people
- replyCount shows active engagement and discussion
- Focus on actionable insights for the content creator

COMMENTS DATA:
`

const insightPromptSchema = `

Provide your analysis in STRICTLY VALID JSON format with the following structure:

{
  "sentiment_score": <integer 0-100, overall positivity>,
  "sentiment_breakdown": {
    "positive": <percentage of positive comments>,
    "neutral": <percentage of neutral comments>,
    "negative": <percentage of negative comments>
  },
  "lead_percentage": <percentage showing buying intent>,
  "leads": [
    {
      "username": "<author>",
      "text": "<comment text>",
      "timestamp": "<date>",
      "sentiment": <0.0-1.0>
    }
  ],
  "top_feedback_topics": [
    {
      "topic": "<topic name>",
      "count": <frequency>,
      "comments": [
        {"author": "<username>", "text": "<excerpt>"}
      ]
    }
  ],
  "top_discussed_topics": [
    {
      "topic": "<topic name>",
      "count": <frequency>,
      "comments": [
        {"author": "<username>", "text": "<excerpt>"}
      ]
    }
  ],
  "actionable_todos": [
    "<legacy field - use creator_insights instead>"
  ],
  "creator_insights": [
    "<actionable insight 1 IF this is the creator's video - what should THEY do based on audience feedback>",
    "<actionable insight 2 for creator>",
    "<actionable insight 3 for creator>",
    "<actionable insight 4 for creator>",
    "<actionable insight 5 for creator>"
  ],
  "competitor_insights": [
    "<strategic insight 1 IF analyzing a COMPETITOR - what can the USER learn and apply to their own content>",
    "<strategic insight 2 for competitor analysis>",
    "<strategic insight 3 for competitor analysis>",
    "<strategic insight 4 for competitor analysis>",
    "<strategic insight 5 for competitor analysis>"
  ],
  "engagement_spikes": [
    {"time": "YYYY-MM-DD", "count": <number>}
  ],
  "top_influencers": [
    {
      "username": "<author>",
      "influenceScore": <based on likes and replies>,
      "mainTopic": "<primary discussion topic>",
      "engagementCount": <total likes + replies>
    }
  ],
  "total_comments": %d
}

IMPORTANT for insights:
- creator_insights: Direct actions the VIDEO OWNER should take (e.g., "Address pricing concerns", "Expand tutorial section")
- competitor_insights: What the ANALYZER can learn (e.g., "Replicate their tutorial format", "Study their engagement tactics")

Return ONLY the JSON object, no markdown formatting or additional text.`

// BuildInsightPrompt renders the analysis prompt. Only the first limit comments are listed,
// but the stated totals count every comment.
func BuildInsightPrompt(comments []models.CanonicalComment, limit int) string {
	var b strings.Builder

	fmt.Fprintf(&b, insightPromptHeader, len(comments))

	for i := range comments[:min(limit, len(comments))] {
		c := &comments[i]
		fmt.Fprintf(&b, "\n%d. Author: @%s\n", i+1, c.Author)
		fmt.Fprintf(&b, "   Date: %s\n", c.Date)
		fmt.Fprintf(&b, "   Likes: %d | Replies: %d\n", c.VoteCount, c.ReplyCount)
		fmt.Fprintf(&b, "   Comment: %s\n", c.Comment)
	}

	fmt.Fprintf(&b, insightPromptSchema, len(comments))

	return b.String()
}
