package services

import (
	"context"
	"strings"

	"google.golang.org/genai"

	"alfredoptarigan/resume-matcher/internal/apperrors"
	"alfredoptarigan/resume-matcher/internal/config"
)

// EmbeddingModel is the external model that turns text into vectors.
type EmbeddingModel interface {
	Encode(ctx context.Context, text string) ([]float32, error)
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// TextGenerator is the external language model used for explanations and
// model-assisted skill extraction.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type geminiService struct {
	client     *genai.Client
	modelName  string
	embedModel string
	dimension  int
}

// GeminiService bundles both model roles behind one client.
type GeminiService interface {
	EmbeddingModel
	TextGenerator
}

func NewGeminiService(cfg *config.Config) (GeminiService, error) {
	ctx := context.Background()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.Gemini.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfiguration, "failed to create gemini client", err)
	}

	return &geminiService{
		client:     client,
		modelName:  cfg.Gemini.Model,
		embedModel: cfg.Gemini.EmbedModel,
		dimension:  cfg.Gemini.EmbeddingDimension,
	}, nil
}

func (g *geminiService) Dimension() int {
	return g.dimension
}

// Encode implements EmbeddingModel.
func (g *geminiService) Encode(ctx context.Context, text string) ([]float32, error) {
	result, err := g.client.Models.EmbedContent(ctx, g.embedModel, genai.Text(text), nil)
	if err != nil {
		return nil, apperrors.ClassifyProviderError(err, "gemini_embedding")
	}

	if result == nil || len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, apperrors.New(apperrors.KindEmbeddingGeneration, "empty embedding result").
			With("model", g.embedModel)
	}

	return result.Embeddings[0].Values, nil
}

// EncodeBatch implements EmbeddingModel. The provider accepts multiple
// contents per request, so the whole batch goes out as one call.
func (g *geminiService) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := g.client.Models.EmbedContent(ctx, g.embedModel, contents, nil)
	if err != nil {
		return nil, apperrors.ClassifyProviderError(err, "gemini_embedding")
	}

	if result == nil || len(result.Embeddings) != len(texts) {
		return nil, apperrors.New(apperrors.KindEmbeddingGeneration, "embedding count mismatch").
			With("expected", len(texts)).
			With("model", g.embedModel)
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range result.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// Complete implements TextGenerator.
func (g *geminiService) Complete(ctx context.Context, prompt string) (string, error) {
	temperature := float32(0.7)
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: 2048,
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, genai.Text(prompt), cfg)
	if err != nil {
		return "", apperrors.ClassifyProviderError(err, "gemini_text")
	}

	if resp == nil || resp.Text() == "" {
		return "", apperrors.New(apperrors.KindExternalService, "no text content in response").
			With("service", "gemini_text").
			With("model", g.modelName)
	}

	return resp.Text(), nil
}

// extractJSON pulls a JSON object or array out of model output that may be
// wrapped in markdown fences or prose.
func extractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")

	startObj := strings.Index(text, "{")
	startArr := strings.Index(text, "[")
	endObj := strings.LastIndex(text, "}")
	endArr := strings.LastIndex(text, "]")

	if startObj != -1 && endObj != -1 && endObj > startObj &&
		(startArr == -1 || startObj < startArr) {
		return text[startObj : endObj+1]
	}
	if startArr != -1 && endArr != -1 && endArr > startArr {
		return text[startArr : endArr+1]
	}
	return text
}
