package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	sampleRows       = 3
	systemPrompt     = "You are a helpful data analyst. Answer questions about the user's tabular datasets."
	replyInstruction = `Respond with a JSON object of the form {"type": T, "value": V}.
Use "string" with a prose answer, "number" with a single numeric answer, or
"dataframe" with {"columns": [...], "data": [[...], ...]} when the answer is a small table.
If a calculation needs rows you were not shown, explain what is needed using the schema and samples.`
)

// ChatCompleter is the subset of the OpenAI client the agent needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIAgent answers from frame schemas and sample rows with a chat
// completion in JSON mode. It never produces charts.
type OpenAIAgent struct {
	client ChatCompleter
	model  string
	logger *zap.Logger
}

func NewOpenAIAgent(apiKey, model string, logger *zap.Logger) *OpenAIAgent {
	return NewOpenAIAgentWithClient(openai.NewClient(apiKey), model, logger)
}

func NewOpenAIAgentWithClient(client ChatCompleter, model string, logger *zap.Logger) *OpenAIAgent {
	if model == "" {
		model = openai.GPT4oMini
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIAgent{client: client, model: model, logger: logger}
}

func (a *OpenAIAgent) Chat(ctx context.Context, query string, frames []NamedFrame) (Reply, error) {
	prompt, err := describeFrames(frames)
	if err != nil {
		return nil, err
	}
	prompt += "\nUser question: " + query + "\n\n" + replyInstruction

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:      1000,
		Temperature:    0.3,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}

	content := resp.Choices[0].Message.Content
	reply, err := DecodeReply([]byte(content))
	if err != nil {
		a.logger.Warn("Agent reply was not structured, using it as text", zap.Error(err))
		return TextReply{Text: strings.TrimSpace(content)}, nil
	}
	if _, ok := reply.(ChartReply); ok {
		// A completion cannot have written a file.
		return TextReply{Text: strings.TrimSpace(content)}, nil
	}
	return reply, nil
}

type frameSummary struct {
	Name       string            `json:"name"`
	Rows       int               `json:"rows"`
	Columns    []string          `json:"columns"`
	Types      map[string]string `json:"dtypes"`
	SampleData []map[string]any  `json:"sample_data"`
}

func describeFrames(frames []NamedFrame) (string, error) {
	summaries := make([]frameSummary, len(frames))
	for i, nf := range frames {
		sample := nf.Frame.Preview(sampleRows)
		rows := make([]map[string]any, len(sample))
		for j, r := range sample {
			rows[j] = r
		}
		summaries[i] = frameSummary{
			Name:       nf.Name,
			Rows:       nf.Frame.Len(),
			Columns:    nf.Frame.Columns,
			Types:      nf.Frame.ColumnTypes(),
			SampleData: rows,
		}
	}
	b, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("describing datasets: %w", err)
	}
	return "Datasets:\n" + string(b) + "\n", nil
}
