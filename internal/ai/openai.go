package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Stugi/resto-worker/internal/config"
	"github.com/bwmarrin/snowflake"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	transcribeTimeout = 120 * time.Second
	completionTimeout = 90 * time.Second

	transcribeLanguage = "ru"
)

const classifySystemPrompt = `Ты анализируешь отзыв гостя ресторана. Верни JSON без пояснений:
{"sentiment":"positive|negative|neutral","category":"еда|сервис|атмосфера|цены|чистота|другое","subcategory":"строка","dishes":["упомянутые блюда"],"severity":1,"problemTypes":["строки"]}
severity: целое от 1 (мелочь) до 5 (критично).`

const classifyBatchSystemPrompt = `Ты анализируешь отзывы гостей ресторана. На входе JSON-массив объектов {"id","text"}. Верни JSON без пояснений:
{"items":[{"id":"...","sentiment":"positive|negative|neutral","category":"еда|сервис|атмосфера|цены|чистота|другое","subcategory":"строка","dishes":["упомянутые блюда"],"severity":1,"problemTypes":["строки"]}]}
severity: целое от 1 (мелочь) до 5 (критично). Верни каждый id ровно один раз, без изменений.`

type OpenAIParams struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

type openAIClient struct {
	client          *openai.Client
	log             *zap.Logger
	chatModel       string
	transcribeModel string
}

func NewOpenAI(p OpenAIParams) Client {
	return &openAIClient{
		client:          openai.NewClient(p.Config.OpenAIAPIKey),
		log:             p.Log.Named("ai"),
		chatModel:       p.Config.OpenAIChatModel,
		transcribeModel: p.Config.OpenAITranscribeModel,
	}
}

func (c *openAIClient) Transcribe(ctx context.Context, filename string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, transcribeTimeout)
	defer cancel()

	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.transcribeModel,
		FilePath: filename,
		Reader:   bytes.NewReader(data),
		Language: transcribeLanguage,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}
	return resp.Text, nil
}

func (c *openAIClient) Classify(ctx context.Context, text string) (*Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("classification: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("classification: empty response")
	}

	var cl Classification
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &cl); err != nil {
		return nil, fmt.Errorf("classification parse: %w", err)
	}
	normalize(&cl)
	return &cl, nil
}

// ClassifyBatch sends every pending transcript in one completion. Items the
// model drops or mangles are simply absent from the result.
func (c *openAIClient) ClassifyBatch(ctx context.Context, texts map[snowflake.ID]string) (map[snowflake.ID]*Classification, error) {
	out := make(map[snowflake.ID]*Classification, len(texts))
	if len(texts) == 0 {
		return out, nil
	}
	if len(texts) == 1 {
		for id, text := range texts {
			cl, err := c.Classify(ctx, text)
			if err != nil {
				return nil, err
			}
			out[id] = cl
		}
		return out, nil
	}

	type batchItem struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}
	items := make([]batchItem, 0, len(texts))
	for id, text := range texts {
		items = append(items, batchItem{ID: id.String(), Text: text})
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("batch payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifyBatchSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(payload)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("batch classification: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("batch classification: empty response")
	}

	var parsed struct {
		Items []struct {
			ID string `json:"id"`
			Classification
		} `json:"items"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return nil, fmt.Errorf("batch classification parse: %w", err)
	}

	for _, item := range parsed.Items {
		id, err := snowflake.ParseString(item.ID)
		if err != nil {
			c.log.Warn("batch verdict with unknown id", zap.String("id", item.ID))
			continue
		}
		if _, asked := texts[id]; !asked {
			c.log.Warn("batch verdict for unrequested id", zap.String("id", item.ID))
			continue
		}
		cl := item.Classification
		normalize(&cl)
		out[id] = &cl
	}
	return out, nil
}

func (c *openAIClient) GenerateReport(ctx context.Context, prompt string) (*ReportResult, error) {
	ctx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("report completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("report completion: empty response")
	}
	model := resp.Model
	if model == "" {
		model = c.chatModel
	}
	return &ReportResult{
		Content:    strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:      model,
		TokensUsed: resp.Usage.TotalTokens,
		Duration:   time.Since(start),
	}, nil
}

func (c *openAIClient) Summarize(ctx context.Context, report string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "Сожми отчёт до 3-4 предложений для владельца ресторана."},
			{Role: openai.ChatMessageRoleUser, Content: report},
		},
	})
	if err != nil {
		return "", fmt.Errorf("summary completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("summary completion: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// normalize clamps model output into the ranges the rest of the system
// relies on.
func normalize(cl *Classification) {
	cl.Sentiment = strings.ToLower(strings.TrimSpace(cl.Sentiment))
	switch cl.Sentiment {
	case "positive", "negative", "neutral":
	default:
		cl.Sentiment = "neutral"
	}
	cl.Category = strings.TrimSpace(cl.Category)
	cl.Subcategory = strings.TrimSpace(cl.Subcategory)
	if cl.Severity < 1 {
		cl.Severity = 1
	}
	if cl.Severity > 5 {
		cl.Severity = 5
	}
}
