package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/tabular"
)

// RemoteAgent forwards questions to an agent sidecar over HTTP. The sidecar
// answers POST {BaseURL}/chat with the {"type", "value"} reply format.
type RemoteAgent struct {
	BaseURL string
	Client  *http.Client
	Logger  *zap.Logger
}

func NewRemoteAgent(baseURL string, timeout time.Duration, logger *zap.Logger) *RemoteAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteAgent{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
		Logger:  logger,
	}
}

type chatRequest struct {
	Query    string        `json:"query"`
	Datasets []chatDataset `json:"datasets"`
}

type chatDataset struct {
	Name    string           `json:"name"`
	Columns []string         `json:"columns"`
	Data    []tabular.Record `json:"data"`
}

func (a *RemoteAgent) Chat(ctx context.Context, query string, frames []NamedFrame) (Reply, error) {
	req := chatRequest{Query: query, Datasets: make([]chatDataset, len(frames))}
	for i, nf := range frames {
		req.Datasets[i] = chatDataset{Name: nf.Name, Columns: nf.Frame.Columns, Data: nf.Frame.Records()}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding agent request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling agent: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading agent response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(payload, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("agent returned %d: %s", resp.StatusCode, e.Error)
		}
		return nil, fmt.Errorf("agent returned %d", resp.StatusCode)
	}

	a.Logger.Debug("Agent reply received", zap.Int("bytes", len(payload)))
	return DecodeReply(payload)
}
