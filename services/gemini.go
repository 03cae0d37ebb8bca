package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/talentwire/talentwire/models"

	"google.golang.org/genai"
)

// ReasoningAgent drives the live conversation. The reply arrives on the chunk
// channel token-by-token; the channel is closed when the reply is complete. A
// value on the error channel means the stream failed and the partial output
// must be discarded.
type ReasoningAgent interface {
	StreamReply(ctx context.Context, instruction string, history []models.TranscriptTurn, message string) (<-chan string, <-chan error)
}

// ScoringAgent turns a finished transcript into one structured JSON document.
type ScoringAgent interface {
	Score(ctx context.Context, prompt string) (string, error)
}

// GeminiService implements both agent roles against the Gemini API.
type GeminiService struct {
	client    *genai.Client
	modelName string
}

func NewGeminiService(ctx context.Context, apiKey, model string) (*GeminiService, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = "gemini-2.5-flash"
	}

	return &GeminiService{client: client, modelName: model}, nil
}

// StreamReply generates the interviewer's next reply, replaying the transcript
// as conversation history and feeding text chunks as they arrive.
func (g *GeminiService) StreamReply(ctx context.Context, instruction string, history []models.TranscriptTurn, message string) (<-chan string, <-chan error) {
	chunks := make(chan string)
	errs := make(chan error, 1)

	contents := buildConversationContents(history)
	if strings.TrimSpace(message) != "" {
		contents = append(contents, genai.NewContentFromText(message, genai.RoleUser))
	}
	if len(contents) == 0 {
		contents = append(contents, genai.NewContentFromText("Hello", genai.RoleUser))
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
	}

	go func() {
		defer close(chunks)

		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.modelName, contents, config) {
			if err != nil {
				errs <- fmt.Errorf("generate reply: %w", err)
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			select {
			case chunks <- text:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()

	return chunks, errs
}

// Score sends the scoring prompt and returns the raw textual response. The
// caller owns parsing; the agent's output is never trusted as-is.
func (g *GeminiService) Score(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("generate score: %w", err)
	}

	output := strings.TrimSpace(resp.Text())
	if output == "" {
		return "", errors.New("scoring agent returned empty response")
	}

	slog.Info("Scoring response received", "length", len(output))
	return output, nil
}

// buildConversationContents replays persisted turns as alternating roles,
// skipping blank content.
func buildConversationContents(turns []models.TranscriptTurn) []*genai.Content {
	var contents []*genai.Content
	for _, turn := range turns {
		if strings.TrimSpace(turn.Content) == "" {
			continue
		}
		if turn.Speaker == models.SpeakerInterviewer {
			contents = append(contents, genai.NewContentFromText(turn.Content, genai.RoleModel))
		} else {
			contents = append(contents, genai.NewContentFromText(turn.Content, genai.RoleUser))
		}
	}
	return contents
}
