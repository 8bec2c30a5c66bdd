package models

import (
	"time"
)

// ErrorResponse represents error response format
type ErrorResponse struct {
	Error           string   `json:"error"`
	CurrentStatus   string   `json:"current_status,omitempty"`
	AllowedStatuses []string `json:"allowed_statuses,omitempty"`
	RequestID       string   `json:"request_id,omitempty"`
}

// NewErrorResponse creates a new error response
func NewErrorResponse(message string) ErrorResponse {
	return ErrorResponse{Error: message}
}

// ProofResult is what the proof generator returns and what the proof cache stores.
type ProofResult struct {
	HTML             string         `json:"html_content"`
	ProofS3URL       string         `json:"proof_s3_url"`
	Preview          PreviewPayload `json:"preview_data"`
	GenerationTimeMs int64          `json:"generation_time_ms"`
}

// PreviewPayload is the client-facing preview of a rendered proof.
type PreviewPayload struct {
	CampaignID    string          `json:"campaign_id"`
	HTMLPreview   string          `json:"html_preview"`
	Assets        PreviewAssets   `json:"assets"`
	AISuggestions AISuggestions   `json:"ai_suggestions"`
	Metadata      PreviewMetadata `json:"metadata"`
}

// PreviewAssets carries presigned image URLs. Images whose URL could not be
// presigned are left out.
type PreviewAssets struct {
	LogoURL       string   `json:"logo_url,omitempty"`
	HeroImageURLs []string `json:"hero_image_urls"`
}

// AISuggestions mirrors the generation result for the preview screen.
type AISuggestions struct {
	SubjectLines   []string      `json:"subject_lines"`
	PreviewText    string        `json:"preview_text"`
	Headline       string        `json:"headline"`
	BodyParagraphs []string      `json:"body_paragraphs"`
	CTAText        string        `json:"cta_text"`
	ImageAltTexts  ImageAltTexts `json:"image_alt_texts"`
	Suggestions    string        `json:"suggestions,omitempty"`
}

// ImageAltTexts lists generated alt texts.
type ImageAltTexts struct {
	Logo       string   `json:"logo,omitempty"`
	HeroImages []string `json:"hero_images"`
}

// PreviewMetadata describes the rendered proof.
type PreviewMetadata struct {
	CampaignName   string    `json:"campaign_name"`
	AdvertiserName string    `json:"advertiser_name"`
	SubjectLine    string    `json:"subject_line,omitempty"`
	PreviewText    string    `json:"preview_text"`
	GeneratedAt    time.Time `json:"generated_at"`
	ProofS3URL     string    `json:"proof_s3_url"`
}

// FinalHTML is the approved production render.
type FinalHTML struct {
	HTML        string
	S3URL       string
	DownloadURL string
}

// ProcessResult summarises one ProcessCampaign run.
type ProcessResult struct {
	CampaignID       string            `json:"campaign_id"`
	Status           CampaignStatus    `json:"status"`
	PreviewURL       string            `json:"preview_url"`
	ProcessingTimeMs int64             `json:"processing_time_ms"`
	AISuggestions    *GenerationResult `json:"ai_suggestions,omitempty"`
}

// DecisionResult is returned by the approval operation.
type DecisionResult struct {
	CampaignID  string         `json:"campaign_id"`
	Status      CampaignStatus `json:"status"`
	DownloadURL string         `json:"download_url,omitempty"`
	Message     string         `json:"message"`
}

// CampaignDetail is a campaign plus short-lived URLs for its uploaded assets.
type CampaignDetail struct {
	*Campaign
	LogoURL      string   `json:"logo_presigned_url,omitempty"`
	HeroImageURL []string `json:"hero_presigned_urls,omitempty"`
}

// StatusView answers "where is this campaign in the pipeline".
type StatusView struct {
	CampaignID string         `json:"campaign_id"`
	Status     CampaignStatus `json:"status"`
	CanPreview bool           `json:"can_preview"`
}

// CampaignList is one page of campaigns.
type CampaignList struct {
	Campaigns []Campaign `json:"campaigns"`
	Total     int        `json:"total"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
}

// DownloadFile is the approved HTML ready to be served as an attachment.
type DownloadFile struct {
	Filename string
	Content  []byte
}

// PerformanceResult echoes the stored metrics after an update.
type PerformanceResult struct {
	CampaignID           string    `json:"campaign_id"`
	OpenRate             *float64  `json:"open_rate,omitempty"`
	ClickRate            *float64  `json:"click_rate,omitempty"`
	ConversionRate       *float64  `json:"conversion_rate,omitempty"`
	PerformanceScore     float64   `json:"performance_score"`
	PerformanceTimestamp time.Time `json:"performance_timestamp"`
	Message              string    `json:"message"`
}

// TestDataSummary reports synthetic performance data generation.
type TestDataSummary struct {
	Generated int                    `json:"generated"`
	Message   string                 `json:"message"`
	Summary   map[string]int         `json:"summary"`
	Campaigns []GeneratedPerformance `json:"campaigns"`
}

// GeneratedPerformance lists the metrics assigned to one campaign.
type GeneratedPerformance struct {
	CampaignID       string  `json:"campaign_id"`
	CampaignName     string  `json:"campaign_name"`
	Tier             string  `json:"tier"`
	OpenRate         float64 `json:"open_rate"`
	ClickRate        float64 `json:"click_rate"`
	ConversionRate   float64 `json:"conversion_rate"`
	PerformanceScore float64 `json:"performance_score"`
}

// Recommendation is one suggested piece of copy.
type Recommendation struct {
	Content         string  `json:"content"`
	ConfidenceScore float64 `json:"confidence_score"`
	Reasoning       string  `json:"reasoning"`
	BasedOnCount    int     `json:"based_on_count"`
}

// Recommendations collects suggestions derived from past campaign performance.
type Recommendations struct {
	CampaignID                   string           `json:"campaign_id"`
	SubjectLineRecommendations   []Recommendation `json:"subject_line_recommendations"`
	PreviewTextRecommendations   []Recommendation `json:"preview_text_recommendations"`
	CTATextRecommendations       []Recommendation `json:"cta_text_recommendations"`
	ContentStructureSuggestions  string           `json:"content_structure_suggestions,omitempty"`
	ImageOptimizationSuggestions string           `json:"image_optimization_suggestions,omitempty"`
	HistoricalDataAvailable      bool             `json:"historical_data_available"`
	TotalCampaignsAnalyzed       int              `json:"total_campaigns_analyzed"`
}

// ImageReplaceResult is returned after swapping a single image.
type ImageReplaceResult struct {
	CampaignID string         `json:"campaign_id"`
	ImageType  string         `json:"image_type"`
	ImageURL   string         `json:"image_url"`
	Status     CampaignStatus `json:"status"`
	Message    string         `json:"message"`
}
