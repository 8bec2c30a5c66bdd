package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// AIPayload is the mutable working state of a campaign: the copy the user submitted,
// where the uploaded assets live, and the latest content generation result.
type AIPayload struct {
	Content    UploadedContent   `json:"content"`
	Logo       *AssetMetadata    `json:"logo,omitempty"`
	HeroImages []AssetMetadata   `json:"hero_images,omitempty"`
	AIResults  *GenerationResult `json:"ai_results,omitempty"`
}

// UploadedContent holds the original text fields submitted with the assets.
type UploadedContent struct {
	SubjectLine string `json:"subject_line,omitempty"`
	PreviewText string `json:"preview_text,omitempty"`
	BodyCopy    string `json:"body_copy,omitempty"`
	CTAText     string `json:"cta_text,omitempty"`
	CTAURL      string `json:"cta_url,omitempty"`
	FooterText  string `json:"footer_text,omitempty"`
}

// AssetMetadata describes one uploaded image.
type AssetMetadata struct {
	Filename    string `json:"filename"`
	S3Key       string `json:"s3_key"`
	S3URL       string `json:"s3_url"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// GenerationResult is the output of one ProcessCampaign run.
type GenerationResult struct {
	TextOptimization TextOptimization `json:"text_optimization"`
	ImageAnalysis    ImageAnalysisSet `json:"image_analysis"`
	OptimizedImages  OptimizedImages  `json:"optimized_images"`
}

// TextOptimization is the rewritten copy returned by the content generator.
type TextOptimization struct {
	SubjectLines   []string `json:"subject_lines"`
	PreviewText    string   `json:"preview_text"`
	Headline       string   `json:"headline"`
	BodyParagraphs []string `json:"body_paragraphs"`
	CTAText        string   `json:"cta_text"`
	Suggestions    string   `json:"suggestions,omitempty"`
}

// PrimarySubject returns the first subject line variant, or "" when there is none.
func (t TextOptimization) PrimarySubject() string {
	if len(t.SubjectLines) == 0 {
		return ""
	}
	return t.SubjectLines[0]
}

// ImageAnalysis is the vision model's assessment of a single image.
type ImageAnalysis struct {
	AltText        string  `json:"alt_text"`
	ContainsText   bool    `json:"contains_text"`
	Quality        string  `json:"quality"`
	CropSuggestion *string `json:"crop_suggestion"`
}

// ImageAnalysisSet groups the analyses for the logo and hero images.
type ImageAnalysisSet struct {
	Logo       *ImageAnalysis  `json:"logo,omitempty"`
	HeroImages []ImageAnalysis `json:"hero_images"`
}

// OptimizedImages holds storage locators of the resized images, hero order preserved.
type OptimizedImages struct {
	Logo       string   `json:"logo,omitempty"`
	HeroImages []string `json:"hero_images"`
}

// Clone returns a deep copy of the payload.
func (p AIPayload) Clone() AIPayload {
	out := p
	if p.Logo != nil {
		logo := *p.Logo
		out.Logo = &logo
	}
	out.HeroImages = append([]AssetMetadata(nil), p.HeroImages...)
	if p.AIResults != nil {
		res := *p.AIResults
		res.TextOptimization.SubjectLines = append([]string(nil), p.AIResults.TextOptimization.SubjectLines...)
		res.TextOptimization.BodyParagraphs = append([]string(nil), p.AIResults.TextOptimization.BodyParagraphs...)
		if p.AIResults.ImageAnalysis.Logo != nil {
			logo := *p.AIResults.ImageAnalysis.Logo
			res.ImageAnalysis.Logo = &logo
		}
		res.ImageAnalysis.HeroImages = append([]ImageAnalysis(nil), p.AIResults.ImageAnalysis.HeroImages...)
		res.OptimizedImages.HeroImages = append([]string(nil), p.AIResults.OptimizedImages.HeroImages...)
		out.AIResults = &res
	}
	return out
}

// Value implements driver.Valuer so the payload is stored as JSONB. It returns a
// string because lib/pq sends []byte parameters as bytea.
func (p AIPayload) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ai payload: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner for JSONB columns.
func (p *AIPayload) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*p = AIPayload{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported ai payload type %T", src)
	}
	if len(data) == 0 {
		*p = AIPayload{}
		return nil
	}
	return json.Unmarshal(data, p)
}
