package models

import (
	"time"
)

// Campaign is one email marketing asset package moving through the approval workflow.
// Uploaded copy and images are optimized by the content generator, rendered into a
// proof, approved or rejected by a human and finally scheduled for a (simulated) send.
type Campaign struct {
	ID             string         `json:"id" db:"id"`
	CampaignName   string         `json:"campaign_name" db:"campaign_name"`
	AdvertiserName string         `json:"advertiser_name" db:"advertiser_name"`
	Status         CampaignStatus `json:"status" db:"status"`

	SchedulingStatus SchedulingStatus `json:"scheduling_status,omitempty" db:"scheduling_status"`
	ScheduledAt      *time.Time       `json:"scheduled_at,omitempty" db:"scheduled_at"`

	ReviewStatus  ReviewStatus `json:"review_status,omitempty" db:"review_status"`
	ReviewerNotes *string      `json:"reviewer_notes,omitempty" db:"reviewer_notes"`

	AssetsS3Path string `json:"assets_s3_path,omitempty" db:"assets_s3_path"`
	ProofS3Path  string `json:"proof_s3_path,omitempty" db:"proof_s3_path"`
	HTMLS3Path   string `json:"html_s3_path,omitempty" db:"html_s3_path"`

	AIProcessingData AIPayload `json:"ai_processing_data" db:"ai_processing_data"`
	Feedback         *string   `json:"feedback,omitempty" db:"feedback"`

	Performance

	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
	ApprovedAt *time.Time `json:"approved_at,omitempty" db:"approved_at"`

	// Version is bumped by the store on every successful update.
	Version int64 `json:"version" db:"version"`
}

// CampaignStatus represents the pipeline status of a campaign
type CampaignStatus string

// enum values for CampaignStatus
const (
	StatusDraft     CampaignStatus = "draft"
	StatusUploaded  CampaignStatus = "uploaded"
	StatusProcessed CampaignStatus = "processed"
	StatusReady     CampaignStatus = "ready"
	StatusApproved  CampaignStatus = "approved"
	StatusRejected  CampaignStatus = "rejected"
)

// AllStatuses lists every pipeline status in workflow order.
var AllStatuses = []CampaignStatus{
	StatusDraft, StatusUploaded, StatusProcessed, StatusReady, StatusApproved, StatusRejected,
}

// IsValid reports whether s is one of the known pipeline statuses.
func (s CampaignStatus) IsValid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// SchedulingStatus tracks whether an approved campaign is queued for send.
// The empty value means "not scheduled".
type SchedulingStatus string

const (
	SchedulingNone      SchedulingStatus = ""
	SchedulingScheduled SchedulingStatus = "scheduled"
	SchedulingSent      SchedulingStatus = "sent"
)

// IsValid reports whether s is empty, scheduled or sent.
func (s SchedulingStatus) IsValid() bool {
	switch s {
	case SchedulingNone, SchedulingScheduled, SchedulingSent:
		return true
	}
	return false
}

// ReviewStatus is an advisory editorial tag. It never gates a pipeline transition.
type ReviewStatus string

const (
	ReviewNone     ReviewStatus = ""
	ReviewPending  ReviewStatus = "pending"
	ReviewReviewed ReviewStatus = "reviewed"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// IsValid reports whether s is a known review status (empty included).
func (s ReviewStatus) IsValid() bool {
	switch s {
	case ReviewNone, ReviewPending, ReviewReviewed, ReviewApproved, ReviewRejected:
		return true
	}
	return false
}

// HasGenerationResults returns true once the content generator has run.
func (c *Campaign) HasGenerationResults() bool {
	return c.AIProcessingData.AIResults != nil
}

// CanPreview returns true when a proof can be rendered for the campaign.
func (c *Campaign) CanPreview() bool {
	return c.Status == StatusProcessed || c.Status == StatusReady
}

// IsDue reports whether the scheduler should fire the campaign at now.
func (c *Campaign) IsDue(now time.Time) bool {
	return c.SchedulingStatus == SchedulingScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now)
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (c *Campaign) Clone() *Campaign {
	if c == nil {
		return nil
	}
	out := *c
	out.ScheduledAt = cloneTime(c.ScheduledAt)
	out.ApprovedAt = cloneTime(c.ApprovedAt)
	out.ReviewerNotes = cloneString(c.ReviewerNotes)
	out.Feedback = cloneString(c.Feedback)
	out.Performance = c.Performance.clone()
	out.AIProcessingData = c.AIProcessingData.Clone()
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
