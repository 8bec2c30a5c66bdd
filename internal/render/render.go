// Package render turns a campaign's copy and resolved image URLs into a complete
// HTML email document using a Liquid template.
package render

import (
	_ "embed"
	"fmt"
	"html"
	"strings"

	"github.com/osteele/liquid"
	"github.com/prajwalbharadwajbm/mailproof/internal/models"
)

//go:embed templates/email.html.liquid
var emailTemplate string

const (
	DefaultCampaignName = "Email Campaign"
	DefaultCTAText      = "Learn More"
	DefaultCTAURL       = "#"
	DefaultLogoAlt      = "Company logo"
	DefaultHeroAlt      = "Hero image"
	DefaultProductAlt   = "Product image"

	maxProductImages = 3
)

// Renderer produces the HTML document for a campaign.
type Renderer interface {
	Render(in Input) (string, error)
}

// Image is a resolved image reference.
type Image struct {
	URL     string
	AltText string
}

// Input carries every value the email template reads.
type Input struct {
	CampaignName   string
	AdvertiserName string
	PreviewText    string
	Headline       string
	BodyParagraphs []string
	CTAText        string
	CTAURL         string
	FooterText     string
	Logo           *Image
	Hero           *Image
	ProductImages  []Image
}

// Assets holds presigned URLs for a campaign's optimized images. HeroURLs is indexed
// like the hero images; an empty entry means the URL could not be resolved.
type Assets struct {
	LogoURL  string
	HeroURLs []string
}

// NewInput builds template input from a campaign. Generated copy wins over the
// submitted copy, which wins over the defaults. The first resolved hero image becomes
// the hero and up to three of the rest become product images.
func NewInput(c *models.Campaign, assets Assets) Input {
	content := c.AIProcessingData.Content
	var text models.TextOptimization
	var analysis models.ImageAnalysisSet
	if res := c.AIProcessingData.AIResults; res != nil {
		text = res.TextOptimization
		analysis = res.ImageAnalysis
	}

	in := Input{
		CampaignName:   firstNonEmpty(c.CampaignName, DefaultCampaignName),
		AdvertiserName: c.AdvertiserName,
		PreviewText:    firstNonEmpty(text.PreviewText, content.PreviewText),
		Headline:       firstNonEmpty(text.Headline, content.SubjectLine),
		BodyParagraphs: text.BodyParagraphs,
		CTAText:        firstNonEmpty(text.CTAText, content.CTAText, DefaultCTAText),
		CTAURL:         firstNonEmpty(content.CTAURL, DefaultCTAURL),
		FooterText:     content.FooterText,
	}
	if len(in.BodyParagraphs) == 0 && strings.TrimSpace(content.BodyCopy) != "" {
		in.BodyParagraphs = SplitParagraphs(content.BodyCopy)
	}

	if assets.LogoURL != "" {
		alt := DefaultLogoAlt
		if analysis.Logo != nil {
			alt = firstNonEmpty(analysis.Logo.AltText, alt)
		}
		in.Logo = &Image{URL: assets.LogoURL, AltText: alt}
	}

	for i, url := range assets.HeroURLs {
		if url == "" {
			continue
		}
		var alt string
		if i < len(analysis.HeroImages) {
			alt = analysis.HeroImages[i].AltText
		}
		if in.Hero == nil {
			in.Hero = &Image{URL: url, AltText: firstNonEmpty(alt, DefaultHeroAlt)}
			continue
		}
		if len(in.ProductImages) == maxProductImages {
			break
		}
		in.ProductImages = append(in.ProductImages, Image{URL: url, AltText: firstNonEmpty(alt, DefaultProductAlt)})
	}

	return in
}

// SplitParagraphs splits body copy on blank lines, dropping empty paragraphs.
func SplitParagraphs(body string) []string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(body, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LiquidRenderer renders the embedded email template.
type LiquidRenderer struct {
	tpl *liquid.Template
}

// NewLiquidRenderer parses the embedded template once.
func NewLiquidRenderer() (*LiquidRenderer, error) {
	return NewLiquidRendererFromSource(emailTemplate)
}

// NewLiquidRendererFromSource parses a custom template using the same filters.
func NewLiquidRendererFromSource(src string) (*LiquidRenderer, error) {
	engine := liquid.NewEngine()
	registerFilters(engine)

	tpl, err := engine.ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("parsing email template: %w", err)
	}
	return &LiquidRenderer{tpl: tpl}, nil
}

func registerFilters(engine *liquid.Engine) {
	engine.RegisterFilter("escape", func(s string) string {
		return html.EscapeString(s)
	})
	engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		if s := fmt.Sprintf("%v", value); s == "" || s == "<nil>" {
			return defaultVal
		}
		return value
	})
}

// Render executes the template against in.
func (r *LiquidRenderer) Render(in Input) (string, error) {
	out, err := r.tpl.RenderString(bindings(in))
	if err != nil {
		return "", fmt.Errorf("rendering email template: %w", err)
	}
	return out, nil
}

func bindings(in Input) liquid.Bindings {
	b := liquid.Bindings{
		"campaign_name":   in.CampaignName,
		"advertiser_name": in.AdvertiserName,
		"preview_text":    in.PreviewText,
		"headline":        in.Headline,
		"body_paragraphs": nonNil(in.BodyParagraphs),
		"cta_text":        in.CTAText,
		"cta_url":         in.CTAURL,
		"footer_text":     in.FooterText,
		"logo_url":        "",
		"logo_alt_text":   "",
		"hero_image_url":  "",
		"hero_alt_text":   "",
	}
	if in.Logo != nil {
		b["logo_url"] = in.Logo.URL
		b["logo_alt_text"] = in.Logo.AltText
	}
	if in.Hero != nil {
		b["hero_image_url"] = in.Hero.URL
		b["hero_alt_text"] = in.Hero.AltText
	}

	products := make([]map[string]interface{}, 0, len(in.ProductImages))
	for _, p := range in.ProductImages {
		products = append(products, map[string]interface{}{"url": p.URL, "alt_text": p.AltText})
	}
	b["product_images"] = products
	return b
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
