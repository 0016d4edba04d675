package fieldextract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GeminiExtractor implements FieldExtractor and AddressExtractor against the
// Gemini API, asking for strict JSON output.
type GeminiExtractor struct {
	apiKey       string
	defaultModel string
	logger       *zap.Logger
}

// NewGeminiExtractor builds an extractor. The model hint supplied per call
// overrides defaultModel when non-empty.
func NewGeminiExtractor(apiKey, defaultModel string, logger *zap.Logger) *GeminiExtractor {
	return &GeminiExtractor{
		apiKey:       strings.TrimSpace(apiKey),
		defaultModel: strings.TrimSpace(defaultModel),
		logger:       logger.Named("fieldextract"),
	}
}

const fieldsInstruction = `You extract structured fields from the OCR text of an identity document.
Return strictly a JSON object with these keys: "name", "address", "document_type", "id_number", "date_of_birth".
Use an empty string for any field that is not present in the text. Output JSON only, no commentary.`

const addressInstruction = `You extract the postal address from the OCR text of an identity document.
Return strictly a JSON object: {"address": "<the full address, or an empty string if none is present>"}.
Output JSON only, no commentary.`

// ExtractFields asks the model for the structured field map. Every failure
// mode collapses into a diagnostic-only map; the caller never sees an error.
func (e *GeminiExtractor) ExtractFields(ctx context.Context, text, modelHint string) Fields {
	raw, err := e.generate(ctx, fieldsInstruction, text, modelHint)
	if err != nil {
		e.logger.Warn("field extraction call failed", zap.Error(err))
		return Fields{KeyError: err.Error()}
	}

	var parsed map[string]string
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		e.logger.Warn("field extraction returned unparseable output", zap.Error(err))
		return Fields{KeyError: err.Error(), KeyRawOutput: raw}
	}

	fields := Fields{}
	for _, key := range []string{KeyName, KeyAddress, KeyDocumentType, KeyIDNumber, KeyDateOfBirth} {
		if value, ok := parsed[key]; ok && !isSentinel(value) {
			fields[key] = strings.TrimSpace(value)
		}
	}
	return fields
}

// ExtractAddress asks the model for the address alone, then falls back to
// local pattern recognition before giving up with an empty string.
func (e *GeminiExtractor) ExtractAddress(ctx context.Context, text, modelHint string) string {
	raw, err := e.generate(ctx, addressInstruction, text, modelHint)
	if err != nil {
		e.logger.Warn("address extraction call failed, trying pattern fallback", zap.Error(err))
		return RecognizeAddress(text)
	}

	var parsed struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		e.logger.Warn("address extraction returned unparseable output, trying pattern fallback", zap.Error(err))
		return RecognizeAddress(text)
	}
	if isSentinel(parsed.Address) {
		return RecognizeAddress(text)
	}
	return strings.TrimSpace(parsed.Address)
}

func (e *GeminiExtractor) generate(ctx context.Context, instruction, text, modelHint string) (string, error) {
	if e.apiKey == "" {
		return "", fmt.Errorf("gemini api key is empty")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(e.apiKey))
	if err != nil {
		return "", err
	}
	defer client.Close()

	name := e.defaultModel
	if strings.TrimSpace(modelHint) != "" {
		name = strings.TrimSpace(modelHint)
	}
	model := client.GenerativeModel(name)
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
	}
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(instruction)},
	}

	resp, err := model.GenerateContent(ctx, genai.Text("DOCUMENT TEXT:\n"+text))
	if err != nil {
		return "", err
	}

	out := firstText(resp)
	if out == "" {
		return "", fmt.Errorf("gemini: empty response")
	}
	return stripCodeFences(out), nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok && strings.TrimSpace(string(text)) != "" {
				return strings.TrimSpace(string(text))
			}
		}
	}
	return ""
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func ptrFloat32(v float32) *float32 {
	return &v
}
