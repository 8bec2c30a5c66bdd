package service

import (
	"context"
	"time"

	"github.com/prajwalbharadwajbm/mailproof/internal/apperror"
	"github.com/prajwalbharadwajbm/mailproof/internal/models"
	"github.com/prajwalbharadwajbm/mailproof/internal/render"
)

var previewableStatuses = []models.CampaignStatus{models.StatusProcessed, models.StatusReady}

// UpdateContent applies a partial copy edit. Generated copy is edited in place once
// the campaign has been processed; any existing proof becomes stale.
func (s *Service) UpdateContent(ctx context.Context, id string, edit models.ContentEdit) (*models.Campaign, error) {
	if err := s.check(edit); err != nil {
		return nil, err
	}
	if edit.IsEmpty() {
		return nil, apperror.Validation("no content fields to update")
	}

	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireStatus("edit", c, editableStatuses...); err != nil {
		return nil, err
	}
	if edit.Headline != nil && !c.HasGenerationResults() {
		return nil, apperror.Validation("headline can only be edited after the campaign is processed")
	}

	applyEdit(&c.AIProcessingData, edit)

	prev, oldProof := c.Status, c.ProofS3Path
	staleProof(c)
	if err := s.save(ctx, "edit", prev, c); err != nil {
		return nil, err
	}
	s.dropProof(ctx, c.ID, oldProof)
	return c, nil
}

func applyEdit(p *models.AIPayload, edit models.ContentEdit) {
	content := &p.Content
	var text *models.TextOptimization
	if p.AIResults != nil {
		text = &p.AIResults.TextOptimization
	}

	if v := edit.SubjectLine; v != nil {
		content.SubjectLine = *v
		if text != nil {
			if len(text.SubjectLines) == 0 {
				text.SubjectLines = []string{*v}
			} else {
				text.SubjectLines[0] = *v
			}
		}
	}
	if v := edit.PreviewText; v != nil {
		content.PreviewText = *v
		if text != nil {
			text.PreviewText = *v
		}
	}
	if v := edit.Headline; v != nil && text != nil {
		text.Headline = *v
	}
	if v := edit.BodyCopy; v != nil {
		content.BodyCopy = *v
		if text != nil {
			text.BodyParagraphs = render.SplitParagraphs(*v)
		}
	}
	if v := edit.CTAText; v != nil {
		content.CTAText = *v
		if text != nil {
			text.CTAText = *v
		}
	}
	if v := edit.CTAURL; v != nil {
		content.CTAURL = *v
	}
	if v := edit.FooterText; v != nil {
		content.FooterText = *v
	}
}

// GenerateProof renders (or serves from cache) the proof and marks the campaign ready.
func (s *Service) GenerateProof(ctx context.Context, id string) (*models.ProofResult, error) {
	return s.proof(ctx, id, "generate_proof", true)
}

// RegenerateProof bypasses the cache and always re-renders and re-uploads.
func (s *Service) RegenerateProof(ctx context.Context, id string) (*models.ProofResult, error) {
	return s.proof(ctx, id, "regenerate_proof", false)
}

// The cache generation is reserved before the record is loaded: an edit saved after
// the load has invalidated it by the time the render tries to cache.
func (s *Service) proof(ctx context.Context, id, op string, useCache bool) (*models.ProofResult, error) {
	generation := s.cache.Reserve(id)
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(op, c, previewableStatuses...); err != nil {
		return nil, err
	}

	res, err := s.proofs.Generate(ctx, c, generation, useCache)
	if err != nil {
		return nil, err
	}

	prev := c.Status
	c.ProofS3Path = res.ProofS3URL
	c.Status = models.StatusReady
	if err := s.save(ctx, op, prev, c); err != nil {
		s.invalidateProof(ctx, c.ID)
		return nil, err
	}
	return res, nil
}

// GetPreview returns the preview payload without touching the record.
func (s *Service) GetPreview(ctx context.Context, id string) (*models.PreviewPayload, error) {
	generation := s.cache.Reserve(id)
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireStatus("preview", c, previewableStatuses...); err != nil {
		return nil, err
	}
	res, err := s.proofs.Generate(ctx, c, generation, true)
	if err != nil {
		return nil, err
	}
	return &res.Preview, nil
}

// Decide approves or rejects a processed or ready campaign. Approval renders the final
// HTML fresh and returns a download URL.
func (s *Service) Decide(ctx context.Context, id string, req models.DecisionRequest) (*models.DecisionResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	if req.Decision != models.DecisionApprove && req.Decision != models.DecisionReject {
		return nil, apperror.Validation("decision must be %q or %q, got %q", models.DecisionApprove, models.DecisionReject, req.Decision)
	}

	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(req.Decision, c, previewableStatuses...); err != nil {
		return nil, err
	}

	prev := c.Status
	result := &models.DecisionResult{CampaignID: c.ID}
	if req.Decision == models.DecisionApprove {
		if !c.HasGenerationResults() {
			return nil, apperror.Validation("campaign %s has no generated content to approve", c.ID)
		}
		final, err := s.proofs.RenderFinal(ctx, c)
		if err != nil {
			return nil, err
		}
		now := s.now().UTC()
		c.HTMLS3Path = final.S3URL
		c.ApprovedAt = &now
		c.Status = models.StatusApproved
		result.DownloadURL = final.DownloadURL
		result.Message = "Campaign approved successfully"
	} else {
		c.Status = models.StatusRejected
		result.Message = "Campaign rejected"
	}
	c.Feedback = req.Feedback

	if err := s.save(ctx, req.Decision, prev, c); err != nil {
		return nil, err
	}
	result.Status = c.Status
	return result, nil
}

// ResetCampaign returns a rejected campaign to uploaded, keeping its content.
func (s *Service) ResetCampaign(ctx context.Context, id string, clearFeedback bool) (*models.Campaign, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireStatus("reset", c, models.StatusRejected); err != nil {
		return nil, err
	}

	prev, oldProof := c.Status, c.ProofS3Path
	c.Status = models.StatusUploaded
	c.ProofS3Path = ""
	c.HTMLS3Path = ""
	c.ApprovedAt = nil
	if clearFeedback {
		c.Feedback = nil
	}
	if err := s.save(ctx, "reset", prev, c); err != nil {
		return nil, err
	}
	s.dropProof(ctx, c.ID, oldProof)
	return c, nil
}

// ReviewCampaign sets the advisory review tag. It is allowed in every status.
func (s *Service) ReviewCampaign(ctx context.Context, id string, req models.ReviewRequest) (*models.Campaign, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	if !req.ReviewStatus.IsValid() {
		return nil, apperror.Validation("review_status must be one of pending, reviewed, approved, rejected, got %q", req.ReviewStatus)
	}

	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	c.ReviewStatus = req.ReviewStatus
	c.ReviewerNotes = req.ReviewerNotes
	if err := s.save(ctx, "review", c.Status, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ScheduleCampaign queues an approved campaign for a future send. Re-scheduling
// replaces the previous time.
func (s *Service) ScheduleCampaign(ctx context.Context, id string, req models.ScheduleRequest) (*models.Campaign, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	at, err := parseScheduleTime(req.ScheduledAt)
	if err != nil {
		return nil, err
	}

	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireStatus("schedule", c, models.StatusApproved); err != nil {
		return nil, err
	}
	if c.SchedulingStatus == models.SchedulingSent {
		return nil, apperror.StateConflict("schedule", "sent", "unscheduled", string(models.SchedulingScheduled))
	}
	if !at.After(s.now()) {
		return nil, apperror.Validation("scheduled_at must be in the future, got %s", at.Format(time.RFC3339))
	}

	prevScheduling := c.SchedulingStatus
	c.ScheduledAt = &at
	c.SchedulingStatus = models.SchedulingScheduled
	if err := s.save(ctx, "schedule", c.Status, c); err != nil {
		return nil, err
	}
	s.recorder.RecordTransition("schedule", schedulingName(prevScheduling), string(models.SchedulingScheduled))
	return c, nil
}

// parseScheduleTime accepts RFC 3339 and, for timestamps without an offset, UTC.
func parseScheduleTime(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperror.Validation("scheduled_at must be an ISO 8601 timestamp, got %q", raw)
}

// CancelSchedule clears a pending schedule.
func (s *Service) CancelSchedule(ctx context.Context, id string) (*models.Campaign, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.SchedulingStatus != models.SchedulingScheduled {
		return nil, apperror.StateConflict("cancel schedule", schedulingName(c.SchedulingStatus), string(models.SchedulingScheduled))
	}

	c.SchedulingStatus = models.SchedulingNone
	c.ScheduledAt = nil
	if err := s.save(ctx, "cancel_schedule", c.Status, c); err != nil {
		return nil, err
	}
	s.recorder.RecordTransition("cancel_schedule", string(models.SchedulingScheduled), schedulingName(models.SchedulingNone))
	return c, nil
}

// MarkSent flips a due campaign to sent. Nothing is actually delivered.
func (s *Service) MarkSent(ctx context.Context, id string) (*models.Campaign, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.SchedulingStatus != models.SchedulingScheduled {
		return nil, apperror.StateConflict("mark sent", schedulingName(c.SchedulingStatus), string(models.SchedulingScheduled))
	}
	if !c.IsDue(s.now()) {
		return nil, apperror.StateConflict("mark sent", "scheduled (not yet due)", string(models.SchedulingScheduled))
	}

	c.SchedulingStatus = models.SchedulingSent
	if err := s.save(ctx, "mark_sent", c.Status, c); err != nil {
		return nil, err
	}
	s.recorder.RecordTransition("mark_sent", string(models.SchedulingScheduled), string(models.SchedulingSent))
	return c, nil
}

// DueCampaigns lists scheduled campaigns whose send time is at or before now.
func (s *Service) DueCampaigns(ctx context.Context, now time.Time) ([]models.Campaign, error) {
	return s.repo.ListDueScheduled(ctx, now)
}

func schedulingName(st models.SchedulingStatus) string {
	if st == models.SchedulingNone {
		return "unscheduled"
	}
	return string(st)
}
