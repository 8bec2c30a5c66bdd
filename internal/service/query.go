package service

import (
	"context"
	"strings"

	"github.com/prajwalbharadwajbm/mailproof/internal/apperror"
	"github.com/prajwalbharadwajbm/mailproof/internal/models"
)

const maxFilenameBase = 50

// GetCampaign returns the campaign with short-lived URLs for its uploaded images.
func (s *Service) GetCampaign(ctx context.Context, id string) (*models.CampaignDetail, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	logo, heroes := s.proofs.PresignAssets(ctx, c)
	return &models.CampaignDetail{Campaign: c, LogoURL: logo, HeroImageURL: heroes}, nil
}

// GetCampaignStatus reports the pipeline status.
func (s *Service) GetCampaignStatus(ctx context.Context, id string) (*models.StatusView, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.StatusView{CampaignID: c.ID, Status: c.Status, CanPreview: c.CanPreview()}, nil
}

// ListCampaigns returns one page of campaigns, newest first.
func (s *Service) ListCampaigns(ctx context.Context, filter models.ListFilter) (*models.CampaignList, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, apperror.Validation("unknown status %q", filter.Status)
	}
	if !filter.ReviewStatus.IsValid() {
		return nil, apperror.Validation("unknown review_status %q", filter.ReviewStatus)
	}
	if filter.Limit < 0 || filter.Limit > models.MaxListLimit {
		return nil, apperror.Validation("limit must be between 1 and %d", models.MaxListLimit)
	}
	if filter.Offset < 0 {
		return nil, apperror.Validation("offset must not be negative")
	}
	filter.Normalize()

	campaigns, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &models.CampaignList{Campaigns: campaigns, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// DownloadFinal returns the approved HTML as an attachment.
func (s *Service) DownloadFinal(ctx context.Context, id string) (*models.DownloadFile, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireStatus("download", c, models.StatusApproved); err != nil {
		return nil, err
	}
	if c.HTMLS3Path == "" {
		return nil, apperror.StateConflict("download", "approved without final HTML", string(models.StatusApproved))
	}

	content, err := s.store.Get(ctx, c.HTMLS3Path)
	if err != nil {
		return nil, apperror.Upstream("failed to fetch final HTML", err)
	}
	return &models.DownloadFile{
		Filename: downloadFilename(c.CampaignName, s.now().UTC().Format("20060102")),
		Content:  content,
	}, nil
}

func downloadFilename(name, date string) string {
	base := strings.NewReplacer(" ", "_", "/", "_").Replace(name)
	if r := []rune(base); len(r) > maxFilenameBase {
		base = string(r[:maxFilenameBase])
	}
	return base + "_" + date + ".html"
}
