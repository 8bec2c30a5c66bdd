package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-kit/log/level"
	"github.com/prajwalbharadwajbm/mailproof/internal/apperror"
	"github.com/prajwalbharadwajbm/mailproof/internal/imageutil"
	"github.com/prajwalbharadwajbm/mailproof/internal/models"
	"github.com/prajwalbharadwajbm/mailproof/internal/storage"
)

// UploadCampaign creates a campaign from uploaded assets, or resubmits a rejected one
// when req.CampaignID names it.
func (s *Service) UploadCampaign(ctx context.Context, req models.UploadRequest) (*models.Campaign, error) {
	req.Normalize()
	if err := s.check(req); err != nil {
		return nil, err
	}
	if len(req.HeroImages) > s.cfg.MaxHeroImages {
		return nil, apperror.Validation("at most %d hero images are allowed, got %d", s.cfg.MaxHeroImages, len(req.HeroImages))
	}

	logoType, err := s.validateImage(*req.Logo)
	if err != nil {
		return nil, err
	}
	heroTypes := make([]string, len(req.HeroImages))
	for i, h := range req.HeroImages {
		if heroTypes[i], err = s.validateImage(h); err != nil {
			return nil, err
		}
	}

	c, resubmit, err := s.uploadTarget(ctx, req.CampaignID)
	if err != nil {
		return nil, err
	}

	logo, err := s.putAsset(ctx, c.ID, req.Logo.Filename, req.Logo.Data, logoType)
	if err != nil {
		return nil, err
	}
	heroes := make([]models.AssetMetadata, 0, len(req.HeroImages))
	for i, h := range req.HeroImages {
		meta, err := s.putAsset(ctx, c.ID, h.Filename, h.Data, heroTypes[i])
		if err != nil {
			return nil, err
		}
		heroes = append(heroes, *meta)
	}

	prev := c.Status
	oldProof := c.ProofS3Path
	c.CampaignName = req.CampaignName
	c.AdvertiserName = req.AdvertiserName
	c.AssetsS3Path = strings.TrimSuffix(logo.S3URL, logo.S3Key) + storage.AssetsPrefix(c.ID)
	c.AIProcessingData = models.AIPayload{
		Content:    req.Content(),
		Logo:       logo,
		HeroImages: heroes,
	}
	c.Status = models.StatusUploaded
	if resubmit {
		c.ProofS3Path = ""
		c.HTMLS3Path = ""
		c.ApprovedAt = nil
	}

	if err := s.save(ctx, "upload", prev, c); err != nil {
		return nil, err
	}
	if resubmit {
		s.dropProof(ctx, c.ID, oldProof)
	}

	level.Info(s.logger).Log("msg", "campaign assets uploaded", "campaign_id", c.ID, "hero_images", len(heroes), "resubmission", resubmit)
	return c, nil
}

// uploadTarget returns the record assets are attached to. A known id must be a
// rejected campaign; an unknown id starts a new campaign.
func (s *Service) uploadTarget(ctx context.Context, id string) (*models.Campaign, bool, error) {
	if id != "" {
		existing, err := s.repo.Get(ctx, id)
		switch {
		case err == nil:
			if err := requireStatus("resubmit", existing, models.StatusRejected); err != nil {
				return nil, false, err
			}
			return existing, true, nil
		case apperror.Is(err, apperror.KindNotFound):
			level.Warn(s.logger).Log("msg", "campaign id for resubmission not found, creating a new campaign", "campaign_id", id)
		default:
			return nil, false, err
		}
	}

	now := s.now().UTC()
	c := &models.Campaign{
		ID:        s.newID(),
		Status:    models.StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, false, err
	}
	return c, false, nil
}

func (s *Service) validateImage(f models.FileUpload) (string, error) {
	contentType, err := imageutil.ValidateUpload(f.Filename, f.Data, s.cfg.MaxFileSize)
	if err != nil {
		return "", apperror.Validation("%v", err)
	}
	return contentType, nil
}

func (s *Service) putAsset(ctx context.Context, campaignID, filename string, data []byte, contentType string) (*models.AssetMetadata, error) {
	key := storage.AssetKey(campaignID, filename)
	locator, err := s.store.Put(ctx, key, data, contentType)
	if err != nil {
		return nil, apperror.Upstream("failed to upload "+filename, err)
	}
	return &models.AssetMetadata{
		Filename:    filename,
		S3Key:       key,
		S3URL:       locator,
		ContentType: contentType,
		Size:        len(data),
	}, nil
}

// parseImageType accepts "logo" or "hero_{index}" and returns the hero index, -1 for
// the logo.
func parseImageType(imageType string) (int, error) {
	if imageType == "logo" {
		return -1, nil
	}
	raw, ok := strings.CutPrefix(imageType, "hero_")
	if !ok {
		return 0, apperror.Validation("image_type must be 'logo' or 'hero_{index}' (e.g. 'hero_0'), got %q", imageType)
	}
	idx, err := strconv.Atoi(raw)
	if err != nil || idx < 0 {
		return 0, apperror.Validation("invalid hero image index in %q, use 'hero_0', 'hero_1', ...", imageType)
	}
	return idx, nil
}

// ReplaceImage swaps the logo or one hero image. The new image is resized and stored
// as the campaign asset and, once processed, as the optimized image too.
func (s *Service) ReplaceImage(ctx context.Context, id string, req models.ReplaceImageRequest) (*models.ImageReplaceResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	heroIdx, err := parseImageType(req.ImageType)
	if err != nil {
		return nil, err
	}
	if _, err := s.validateImage(req.File); err != nil {
		return nil, err
	}

	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireStatus("replace image", c, editableStatuses...); err != nil {
		return nil, err
	}
	if heroIdx >= 0 {
		if heroIdx >= s.cfg.MaxHeroImages {
			return nil, apperror.Validation("hero image index %d out of range, at most %d hero images are allowed", heroIdx, s.cfg.MaxHeroImages)
		}
		if heroIdx > len(c.AIProcessingData.HeroImages) {
			return nil, apperror.Validation("hero image index %d out of range, campaign has %d hero images", heroIdx, len(c.AIProcessingData.HeroImages))
		}
	}

	bounds := imageutil.HeroBounds
	if heroIdx < 0 {
		bounds = imageutil.LogoBounds
	}
	data, contentType := req.File.Data, imageutil.DetectContentType(req.File.Data)
	if optimized, err := imageutil.Optimize(req.File.Data, bounds); err != nil {
		level.Warn(s.logger).Log("msg", "image optimization failed, storing original", "campaign_id", c.ID, "image_type", req.ImageType, "err", err)
	} else {
		data, contentType = optimized, "image/jpeg"
	}

	filename := req.ImageType + extensionFor(contentType)
	meta, err := s.putAsset(ctx, c.ID, filename, data, contentType)
	if err != nil {
		return nil, err
	}

	payload := &c.AIProcessingData
	if heroIdx < 0 {
		payload.Logo = meta
	} else if heroIdx == len(payload.HeroImages) {
		payload.HeroImages = append(payload.HeroImages, *meta)
	} else {
		payload.HeroImages[heroIdx] = *meta
	}
	if res := payload.AIResults; res != nil {
		if heroIdx < 0 {
			res.OptimizedImages.Logo = meta.S3URL
		} else {
			for len(res.OptimizedImages.HeroImages) <= heroIdx {
				res.OptimizedImages.HeroImages = append(res.OptimizedImages.HeroImages, "")
			}
			res.OptimizedImages.HeroImages[heroIdx] = meta.S3URL
		}
	}

	prev, oldProof := c.Status, c.ProofS3Path
	staleProof(c)
	if err := s.save(ctx, "replace_image", prev, c); err != nil {
		return nil, err
	}
	s.dropProof(ctx, c.ID, oldProof)

	return &models.ImageReplaceResult{
		CampaignID: c.ID,
		ImageType:  req.ImageType,
		ImageURL:   meta.S3URL,
		Status:     c.Status,
		Message:    fmt.Sprintf("Image %s replaced successfully", req.ImageType),
	}, nil
}

var editableStatuses = []models.CampaignStatus{models.StatusUploaded, models.StatusProcessed, models.StatusReady}

// staleProof clears the proof locator and moves a ready campaign back to processed.
func staleProof(c *models.Campaign) {
	c.ProofS3Path = ""
	if c.Status == models.StatusReady {
		c.Status = models.StatusProcessed
	}
}

func extensionFor(contentType string) string {
	if exts, ok := imageutil.AllowedUploadTypes[contentType]; ok {
		return exts[0]
	}
	return ".jpg"
}
