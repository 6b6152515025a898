package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/relieflaunch/campaignkit/models"
	"github.com/relieflaunch/campaignkit/provider"
)

const campaignKitSchemaName = "campaign_kit"

// campaignKitSchema constrains the structured-output call. Strict mode keeps
// the model inside the fixed shape; URL grounding is still validated here,
// since a schema cannot express "member of this run's source set".
var campaignKitSchema = json.RawMessage(`{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "title": {"type": "string"},
    "location": {"type": "string"},
    "event_type": {
      "type": "string",
      "enum": ["earthquake", "flood", "hurricane", "wildfire", "tsunami", "other"]
    },
    "summary": {"type": "string"},
    "key_claims": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "properties": {
          "claim": {"type": "string"},
          "source_url": {"type": "string"}
        },
        "required": ["claim", "source_url"]
      }
    },
    "confidence_score": {"type": "number"},
    "image_url": {"type": "string"}
  },
  "required": ["title", "location", "event_type", "summary", "key_claims", "confidence_score", "image_url"]
}`)

// ErrMalformedOutput marks a generation response that did not parse as the
// requested schema. Distinct from a grounding violation: it is terminal for
// the attempt and never retried.
var ErrMalformedOutput = errors.New("model returned malformed JSON")

// GroundingError reports claims citing URLs outside the allowed source set
// after the correction retry was exhausted.
type GroundingError struct {
	BadURLs []string
}

func (e *GroundingError) Error() string {
	return fmt.Sprintf("generated key_claims contain URLs not present in the provided sources: %s", strings.Join(e.BadURLs, ", "))
}

// Generator produces grounded campaign kits from retrieved chunks. Cited
// source URLs must be literal members of the allowed set; a violation gets
// exactly one correction attempt before the run is rejected.
type Generator struct {
	Provider provider.Provider
	Logger   *log.Logger
}

func NewGenerator(p provider.Provider, logger *log.Logger) *Generator {
	if logger == nil {
		logger = log.New(log.Writer(), "[GENERATE] ", log.LstdFlags)
	}
	return &Generator{Provider: p, Logger: logger}
}

// Generate runs the generate/validate/retry protocol. Never returns a kit
// with ungrounded claims: on a second validation failure the result is a
// GroundingError naming the offending URLs.
func (g *Generator) Generate(ctx context.Context, retrieved []models.RetrievedChunk, sourceURLs []string, imageURLs []string) (*models.CampaignKit, error) {
	prompt := buildPrompt(retrieved, sourceURLs, imageURLs)

	kit, err := g.generateOnce(ctx, prompt)
	if err != nil {
		return nil, err
	}
	sanitizeImage(kit, imageURLs)

	bad := invalidClaimURLs(kit, sourceURLs)
	if len(bad) == 0 {
		return kit, nil
	}

	g.Logger.Printf("claims cited %d ungrounded URLs, issuing correction", len(bad))
	correction := fmt.Sprintf(
		"%s\n\nCORRECTION: Your previous response contained source_url values that are not in the SOURCES list: %s.\nEvery source_url in key_claims MUST be one of:\n%s\nRegenerate the campaign kit using only those exact URLs.",
		prompt, strings.Join(bad, ", "), strings.Join(sourceURLs, "\n"))

	kit, err = g.generateOnce(ctx, correction)
	if err != nil {
		return nil, err
	}
	sanitizeImage(kit, imageURLs)

	if bad = invalidClaimURLs(kit, sourceURLs); len(bad) > 0 {
		return nil, &GroundingError{BadURLs: bad}
	}
	return kit, nil
}

// generateOnce is one GENERATE then PARSE step. Malformed JSON is terminal
// for the attempt; it is never corrected, to avoid looping on a response
// that is not JSON at all.
func (g *Generator) generateOnce(ctx context.Context, prompt string) (*models.CampaignKit, error) {
	raw, err := g.Provider.GenerateStructured(ctx, prompt, campaignKitSchemaName, campaignKitSchema)
	if err != nil {
		return nil, fmt.Errorf("generation call failed: %w", err)
	}

	var kit models.CampaignKit
	if err := json.Unmarshal([]byte(raw), &kit); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return &kit, nil
}

// sanitizeImage forces image_url to "" unless it is a literal member of the
// candidate list. Corrected in place, never retried: clearing the image
// loses nothing the sources did not already lack.
func sanitizeImage(kit *models.CampaignKit, imageURLs []string) {
	if kit.ImageURL == "" {
		return
	}
	for _, candidate := range imageURLs {
		if kit.ImageURL == candidate {
			return
		}
	}
	kit.ImageURL = ""
}

// invalidClaimURLs collects every claim source_url outside the allowed set.
// Membership is literal string equality, no fuzzy matching.
func invalidClaimURLs(kit *models.CampaignKit, sourceURLs []string) []string {
	allowed := make(map[string]struct{}, len(sourceURLs))
	for _, u := range sourceURLs {
		allowed[u] = struct{}{}
	}

	var bad []string
	seen := make(map[string]struct{})
	for _, claim := range kit.KeyClaims {
		if _, ok := allowed[claim.SourceURL]; ok {
			continue
		}
		if _, dup := seen[claim.SourceURL]; dup {
			continue
		}
		seen[claim.SourceURL] = struct{}{}
		bad = append(bad, claim.SourceURL)
	}
	return bad
}

func buildPrompt(retrieved []models.RetrievedChunk, sourceURLs []string, imageURLs []string) string {
	parts := make([]string, 0, len(retrieved))
	for _, rc := range retrieved {
		parts = append(parts, rc.Chunk.Text)
	}
	context := strings.Join(parts, "\n\n---\n\n")
	sources := strings.Join(sourceURLs, "\n")

	imageInstruction := `- image_url: Set to "" (empty string); no candidate images are available.`
	imageSection := ""
	if len(imageURLs) > 0 {
		imageInstruction = `- image_url: Copy exactly one URL verbatim from the CANDIDATE IMAGES list above, choosing the most representative image, or "" if none fits.`
		imageSection = "\n\nCANDIDATE IMAGES:\n" + strings.Join(imageURLs, "\n")
	}

	return fmt.Sprintf(`You are a campaign content writer for a humanitarian aid platform.
Using ONLY the following verified source material, generate a campaign kit.

SOURCE MATERIAL:
%s

SOURCES:
%s%s

Instructions:
- title: A compelling, empathetic campaign title.
- location: The affected geographic area.
- event_type: One of: earthquake, flood, hurricane, wildfire, tsunami, other.
- summary: A 2-3 paragraph empathetic, professional summary as a single string.
- key_claims: Array of objects each with "claim" (a key factual statement) and "source_url" (must be one of the URLs listed under SOURCES above — do not invent URLs).
- confidence_score: Float between 0.0 and 1.0 reflecting how well the claims are supported.
%s

Do NOT include any information not present in the source material.`, context, sources, imageSection, imageInstruction)
}
