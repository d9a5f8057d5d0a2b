package gcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/Lllllllleong/documentpacker/internal/models"
)

// --- Hint Suggester Model Prompts ---
const SuggestSystemPrompt = "You extract document hints from OCR text and return compact JSON. Keep it minimal."
const SuggestUserPrompt = `OCR TEXT:

%s

Task: Propose JSON with keys DocType, Side, ImportantFields (array). Side is Front or Back if clear, else omit. Choose DocType among: I-20, I-765, EAD, Passport, or a short guess.

Examples:
Input: 'Form I-20 Certificate of Eligibility for Nonimmigrant Student Status'
Output: {"DocType":"I-20","Side":"Front","ImportantFields":["SEVIS ID","School Code","Given Name","Surname","Birth Date"]}

Input: 'Application For Employment Authorization Department of Homeland Security Form I-765'
Output: {"DocType":"I-765","Side":"Front","ImportantFields":["USCIS Account","A-Number","Full Name","Mailing Address"]}

Input: 'EMPLOYMENT AUTHORIZATION CARD United States of America'
Output: {"DocType":"EAD","Side":"Front","ImportantFields":["Card Number","Category","Surname","Given Name","Country of Birth"]}

Input: 'P<USADOE<<JANE<<<<<<<<<<<<<<<<<<<<<<<<<<<'
Output: {"DocType":"Passport","Side":"Back","ImportantFields":["Passport Number","Surname","Given Name","Nationality"]}

Now respond with a single JSON object for the OCR TEXT above.`

// maxPromptText bounds the OCR text sent to the model.
const maxPromptText = 8000

// VertexClient holds the generative model used for hint suggestions.
type VertexClient struct {
	SuggestModel *genai.GenerativeModel
	baseClient   *genai.Client
}

// NewVertexClient creates a new client holding the suggester model.
func NewVertexClient(ctx context.Context, projectID, region string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	suggestModel := baseClient.GenerativeModel("gemini-1.5-flash")
	suggestModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(SuggestSystemPrompt)},
	}
	suggestModel.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.1),
	}

	return &VertexClient{SuggestModel: suggestModel, baseClient: baseClient}, nil
}

// Suggest asks the model for DocType, Side and ImportantFields.
func (c *VertexClient) Suggest(ctx context.Context, text string) (*models.Suggestion, error) {
	if len(text) > maxPromptText {
		text = text[:maxPromptText]
	}
	resp, err := c.SuggestModel.GenerateContent(ctx, genai.Text(fmt.Sprintf(SuggestUserPrompt, text)))
	if err != nil {
		return nil, fmt.Errorf("suggest model call failed: %w", err)
	}
	return parseSuggestion(resp)
}

func parseSuggestion(resp *genai.GenerateContentResponse) (*models.Suggestion, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("suggest model returned no candidates")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return DecodeSuggestion(sb.String())
}

// DecodeSuggestion parses the model's JSON answer. Code fences around the
// object are tolerated.
func DecodeSuggestion(raw string) (*models.Suggestion, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var s models.Suggestion
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &s); err != nil {
		return nil, fmt.Errorf("failed to decode suggestion %q: %w", raw, err)
	}
	return &s, nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
