package models

import (
	"strings"
)

// List pagination bounds.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// FileUpload is one image received from a multipart form.
type FileUpload struct {
	Filename    string `validate:"required,max=255"`
	ContentType string
	Data        []byte `validate:"min=1"`
}

// UploadRequest carries assets and copy for a new campaign, or for the
// resubmission of a rejected one when CampaignID is set.
type UploadRequest struct {
	CampaignID     string       `validate:"omitempty,max=64"`
	CampaignName   string       `validate:"required,min=1,max=200"`
	AdvertiserName string       `validate:"required,min=1,max=200"`
	SubjectLine    string       `validate:"max=200"`
	PreviewText    string       `validate:"max=200"`
	BodyCopy       string       `validate:"max=5000"`
	CTAText        string       `validate:"max=50"`
	CTAURL         string       `validate:"max=500"`
	FooterText     string       `validate:"max=500"`
	Logo           *FileUpload  `validate:"required"`
	HeroImages     []FileUpload `validate:"dive"`
}

// Normalize trims whitespace from the text fields.
func (r *UploadRequest) Normalize() {
	r.CampaignID = strings.TrimSpace(r.CampaignID)
	r.CampaignName = strings.TrimSpace(r.CampaignName)
	r.AdvertiserName = strings.TrimSpace(r.AdvertiserName)
}

// Content returns the submitted copy.
func (r *UploadRequest) Content() UploadedContent {
	return UploadedContent{
		SubjectLine: r.SubjectLine,
		PreviewText: r.PreviewText,
		BodyCopy:    r.BodyCopy,
		CTAText:     r.CTAText,
		CTAURL:      r.CTAURL,
		FooterText:  r.FooterText,
	}
}

// ContentEdit is a partial update of the campaign copy. Nil fields are left untouched.
type ContentEdit struct {
	SubjectLine *string `json:"subject_line,omitempty" validate:"omitempty,max=200"`
	PreviewText *string `json:"preview_text,omitempty" validate:"omitempty,max=200"`
	Headline    *string `json:"headline,omitempty" validate:"omitempty,max=200"`
	BodyCopy    *string `json:"body_copy,omitempty" validate:"omitempty,max=5000"`
	CTAText     *string `json:"cta_text,omitempty" validate:"omitempty,max=50"`
	CTAURL      *string `json:"cta_url,omitempty" validate:"omitempty,max=500"`
	FooterText  *string `json:"footer_text,omitempty" validate:"omitempty,max=500"`
}

// IsEmpty reports whether the edit changes nothing.
func (e ContentEdit) IsEmpty() bool {
	return e.SubjectLine == nil && e.PreviewText == nil && e.Headline == nil &&
		e.BodyCopy == nil && e.CTAText == nil && e.CTAURL == nil && e.FooterText == nil
}

// ReplaceImageRequest swaps the logo ("logo") or one hero image ("hero_{index}").
type ReplaceImageRequest struct {
	ImageType string `validate:"required"`
	File      FileUpload
}

// Decision values accepted by the approval operation.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// DecisionRequest approves or rejects a campaign.
type DecisionRequest struct {
	Decision string  `json:"decision" validate:"required"`
	Feedback *string `json:"feedback,omitempty" validate:"omitempty,max=2000"`
}

// ScheduleRequest carries an ISO 8601 send time.
type ScheduleRequest struct {
	ScheduledAt string `json:"scheduled_at" validate:"required"`
}

// ReviewRequest sets the advisory review tag.
type ReviewRequest struct {
	ReviewStatus  ReviewStatus `json:"review_status" validate:"required"`
	ReviewerNotes *string      `json:"reviewer_notes,omitempty" validate:"omitempty,max=2000"`
}

// PerformanceRequest reports engagement metrics; nil rates keep the stored value.
type PerformanceRequest struct {
	OpenRate       *float64 `json:"open_rate,omitempty" validate:"omitempty,min=0,max=1"`
	ClickRate      *float64 `json:"click_rate,omitempty" validate:"omitempty,min=0,max=1"`
	ConversionRate *float64 `json:"conversion_rate,omitempty" validate:"omitempty,min=0,max=1"`
}

// ListFilter selects and pages campaigns. Empty status fields match everything.
type ListFilter struct {
	Status       CampaignStatus
	ReviewStatus ReviewStatus
	// OnlyReviewed restricts the list to campaigns carrying any review status.
	OnlyReviewed bool
	Limit        int
	Offset       int
}

// Normalize applies the default limit and clamps out-of-range paging values.
func (f *ListFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}
