package models

import (
	"bytes"
	"encoding/json"
	"math"
	"time"
)

// SentimentBreakdown holds positive/neutral/negative proportions (percentages).
type SentimentBreakdown struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

// UnmarshalJSON accepts fractional percentages and rounds them.
func (b *SentimentBreakdown) UnmarshalJSON(data []byte) error {
	var aux struct {
		Positive roundedInt `json:"positive"`
		Neutral  roundedInt `json:"neutral"`
		Negative roundedInt `json:"negative"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	b.Positive, b.Neutral, b.Negative = int(aux.Positive), int(aux.Neutral), int(aux.Negative)

	return nil
}

// LeadComment is a comment showing buying intent.
type LeadComment struct {
	Username  string  `json:"username"`
	Text      string  `json:"text"`
	Timestamp string  `json:"timestamp"`
	Sentiment float64 `json:"sentiment"`
}

// TopicExcerpt is an example comment attached to a topic cluster.
type TopicExcerpt struct {
	Author string `json:"author"`
	Text   string `json:"text"`
}

// TopicCluster groups comments around one topic.
type TopicCluster struct {
	Topic    string         `json:"topic"`
	Count    int            `json:"count"`
	Comments []TopicExcerpt `json:"comments"`
}

// UnmarshalJSON accepts a fractional count and rounds it.
func (c *TopicCluster) UnmarshalJSON(data []byte) error {
	type plain TopicCluster

	aux := struct {
		*plain
		Count *roundedInt `json:"count"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.Count != nil {
		c.Count = int(*aux.Count)
	}

	return nil
}

// EngagementSpike is one bucket of the engagement time series.
type EngagementSpike struct {
	Time  string `json:"time"`
	Count int    `json:"count"`
}

// UnmarshalJSON accepts a fractional count and rounds it.
func (s *EngagementSpike) UnmarshalJSON(data []byte) error {
	type plain EngagementSpike

	aux := struct {
		*plain
		Count *roundedInt `json:"count"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.Count != nil {
		s.Count = int(*aux.Count)
	}

	return nil
}

// Influencer is a ranked high-engagement commenter.
type Influencer struct {
	Username        string `json:"username"`
	InfluenceScore  int    `json:"influenceScore"`
	MainTopic       string `json:"mainTopic"`
	EngagementCount int    `json:"engagementCount"`
}

// UnmarshalJSON accepts fractional scores and counts and rounds them.
func (i *Influencer) UnmarshalJSON(data []byte) error {
	type plain Influencer

	aux := struct {
		*plain
		InfluenceScore  *roundedInt `json:"influenceScore"`
		EngagementCount *roundedInt `json:"engagementCount"`
	}{plain: (*plain)(i)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.InfluenceScore != nil {
		i.InfluenceScore = int(*aux.InfluenceScore)
	}

	if aux.EngagementCount != nil {
		i.EngagementCount = int(*aux.EngagementCount)
	}

	return nil
}

// AnalysisResult is the structured output of insight extraction.
type AnalysisResult struct {
	SentimentScore     int                `json:"sentiment_score"`
	SentimentBreakdown SentimentBreakdown `json:"sentiment_breakdown"`
	LeadPercentage     int                `json:"lead_percentage"`
	Leads              []LeadComment      `json:"leads"`
	TopFeedbackTopics  []TopicCluster     `json:"top_feedback_topics"`
	TopDiscussedTopics []TopicCluster     `json:"top_discussed_topics"`
	// ActionableTodos is the legacy insight list, superseded by CreatorInsights.
	ActionableTodos    []string          `json:"actionable_todos"`
	CreatorInsights    []string          `json:"creator_insights"`
	CompetitorInsights []string          `json:"competitor_insights"`
	EngagementSpikes   []EngagementSpike `json:"engagement_spikes"`
	TopInfluencers     []Influencer      `json:"top_influencers"`
	TotalComments      int               `json:"total_comments"`
	VibeTrend          []int             `json:"vibe_trend"`
}

// UnmarshalJSON rounds the fractional numbers an LLM tends to produce for the integer
// columns of analysis_history. Absent fields keep their current value.
func (r *AnalysisResult) UnmarshalJSON(data []byte) error {
	type plain AnalysisResult

	aux := struct {
		*plain
		SentimentScore *roundedInt `json:"sentiment_score"`
		LeadPercentage *roundedInt `json:"lead_percentage"`
		TotalComments  *roundedInt `json:"total_comments"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.SentimentScore != nil {
		r.SentimentScore = int(*aux.SentimentScore)
	}

	if aux.LeadPercentage != nil {
		r.LeadPercentage = int(*aux.LeadPercentage)
	}

	if aux.TotalComments != nil {
		r.TotalComments = int(*aux.TotalComments)
	}

	return nil
}

// roundedInt is LooseInt with fractional numbers rounded to the nearest integer.
type roundedInt int

func (n *roundedInt) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(bytes.TrimSpace(data), &f); err == nil {
		*n = roundedInt(math.Round(f))

		return nil
	}

	var loose LooseInt
	if err := loose.UnmarshalJSON(data); err != nil {
		return err
	}

	*n = roundedInt(loose)

	return nil
}

// AnalysisSummary is a row of analysis_history.
type AnalysisSummary struct {
	ID             string    `json:"id"`
	URL            string    `json:"url"`
	Platform       string    `json:"platform"`
	SentimentScore int       `json:"sentiment_score"`
	LeadPercentage int       `json:"lead_percentage"`
	TotalComments  int       `json:"total_comments"`
	CreatedAt      time.Time `json:"created_at"`
}

// AnalysisReport is the report-page view combining summary and details.
type AnalysisReport struct {
	SentimentScore     int                `json:"sentimentScore"`
	LeadPercentage     int                `json:"leadPercentage"`
	TotalComments      int                `json:"totalComments"`
	SentimentBreakdown SentimentBreakdown `json:"sentimentBreakdown"`
	Leads              []LeadComment      `json:"leads"`
	TopFeedbackTopics  []TopicCluster     `json:"topFeedbackTopics"`
	TopTopics          []TopicCluster     `json:"topTopics"`
	ActionableTodos    []string           `json:"actionableTodos"`
	CreatorInsights    []string           `json:"creatorInsights"`
	CompetitorInsights []string           `json:"competitorInsights"`
	EngagementTimeline []EngagementSpike  `json:"engagementTimeline"`
	TopInfluencers     []Influencer       `json:"topInfluencers"`
	VibeTrend          []int              `json:"vibeTrend"`
	URL                string             `json:"url"`
	CreatedAt          time.Time          `json:"createdAt"`
}

// NewAnalysisReport builds the report view from a summary row and the stored result.
func NewAnalysisReport(summary AnalysisSummary, result AnalysisResult) AnalysisReport {
	return AnalysisReport{
		SentimentScore:     summary.SentimentScore,
		LeadPercentage:     summary.LeadPercentage,
		TotalComments:      summary.TotalComments,
		SentimentBreakdown: result.SentimentBreakdown,
		Leads:              result.Leads,
		TopFeedbackTopics:  result.TopFeedbackTopics,
		TopTopics:          result.TopDiscussedTopics,
		ActionableTodos:    nonNil(result.ActionableTodos),
		CreatorInsights:    nonNil(result.CreatorInsights),
		CompetitorInsights: nonNil(result.CompetitorInsights),
		EngagementTimeline: result.EngagementSpikes,
		TopInfluencers:     result.TopInfluencers,
		VibeTrend:          result.VibeTrend,
		URL:                summary.URL,
		CreatedAt:          summary.CreatedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}

	return s
}

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	Message    string `json:"message" validate:"required,no_null_bytes,max=4000"`
	Model      string `json:"model" validate:"omitempty,max=100"`
	AnalysisID string `json:"analysis_id" validate:"required,uuid"`
}

// ChatResponse is the assistant reply.
type ChatResponse struct {
	Response string `json:"response"`
}
