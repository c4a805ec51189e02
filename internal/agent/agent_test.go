package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/tabular"
)

func TestDecodeReply(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Reply
	}{
		{"string", `{"type":"string","value":"Sales rose 4%"}`, TextReply{Text: "Sales rose 4%"}},
		{"number", `{"type":"number","value":12.5}`, TextReply{Text: "12.5"}},
		{"plot", `{"type":"plot","value":"/tmp/exports/charts/abc.png"}`, ChartReply{Path: "/tmp/exports/charts/abc.png"}},
		{"png string", `{"type":"string","value":"exports/chart.PNG"}`, ChartReply{Path: "exports/chart.PNG"}},
		{"bare string", `"just text"`, TextReply{Text: "just text"}},
		{
			"split dataframe",
			`{"type":"dataframe","value":{"columns":["region","units"],"data":[["north",10],["south",2.5]]}}`,
			TableReply{Frame: &tabular.Frame{
				Columns: []string{"region", "units"},
				Rows:    [][]any{{"north", int64(10)}, {"south", 2.5}},
			}},
		},
		{
			"records dataframe",
			`{"type":"dataframe","value":[{"b":1,"a":"x"},{"a":"y"}]}`,
			TableReply{Frame: &tabular.Frame{
				Columns: []string{"b", "a"},
				Rows:    [][]any{{int64(1), "x"}, {nil, "y"}},
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeReply([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeReply_Malformed(t *testing.T) {
	malformed := []string{
		"",
		"not json",
		`{"type":"video","value":1}`,
		`{"type":"plot","value":""}`,
		`{"type":"plot","value":"/etc/passwd"}`,
		`{"type":"plot","value":"/app/.env"}`,
	}
	for _, raw := range malformed {
		_, err := DecodeReply([]byte(raw))
		assert.ErrorIs(t, err, ErrMalformedReply, raw)
	}
}

func sampleFrames() []NamedFrame {
	return []NamedFrame{{
		Name:  "sales",
		Frame: &tabular.Frame{Columns: []string{"region", "units"}, Rows: [][]any{{"north", int64(3)}, {nil, int64(4)}}},
	}}
}

func TestRemoteAgent_Chat(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"type":"number","value":7}`))
	}))
	defer srv.Close()

	a := NewRemoteAgent(srv.URL+"/", time.Second, nil)
	reply, err := a.Chat(context.Background(), "total units?", sampleFrames())
	require.NoError(t, err)
	assert.Equal(t, TextReply{Text: "7"}, reply)

	assert.Equal(t, "total units?", got.Query)
	require.Len(t, got.Datasets, 1)
	assert.Equal(t, "sales", got.Datasets[0].Name)
	assert.Equal(t, []string{"region", "units"}, got.Datasets[0].Columns)
	assert.Equal(t, "", got.Datasets[0].Data[1]["region"])
}

func TestRemoteAgent_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"llm unavailable"}`))
	}))
	defer srv.Close()

	_, err := NewRemoteAgent(srv.URL, time.Second, nil).Chat(context.Background(), "q", sampleFrames())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "llm unavailable")
}

func TestRemoteAgent_ContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := NewRemoteAgent(srv.URL, time.Minute, nil).Chat(ctx, "q", sampleFrames())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type fakeCompleter struct {
	content string
	err     error
	last    openai.ChatCompletionRequest
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.last = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: f.content}}},
	}, nil
}

func TestOpenAIAgent_Chat(t *testing.T) {
	fc := &fakeCompleter{content: `{"type":"dataframe","value":{"columns":["region"],"data":[["north"]]}}`}
	a := NewOpenAIAgentWithClient(fc, "", nil)

	reply, err := a.Chat(context.Background(), "which regions?", sampleFrames())
	require.NoError(t, err)
	table, ok := reply.(TableReply)
	require.True(t, ok)
	assert.Equal(t, []string{"region"}, table.Frame.Columns)

	assert.Equal(t, openai.GPT4oMini, fc.last.Model)
	require.NotNil(t, fc.last.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, fc.last.ResponseFormat.Type)
	user := fc.last.Messages[1].Content
	assert.Contains(t, user, "which regions?")
	assert.Contains(t, user, `"name": "sales"`)
	assert.Contains(t, user, `"units": "int64"`)
}

func TestOpenAIAgent_UnstructuredFallsBackToText(t *testing.T) {
	a := NewOpenAIAgentWithClient(&fakeCompleter{content: "  North leads.  "}, "gpt-4o", nil)
	reply, err := a.Chat(context.Background(), "q", sampleFrames())
	require.NoError(t, err)
	assert.Equal(t, TextReply{Text: "North leads."}, reply)
}

func TestOpenAIAgent_PlotBecomesText(t *testing.T) {
	a := NewOpenAIAgentWithClient(&fakeCompleter{content: `{"type":"plot","value":"chart.png"}`}, "", nil)
	reply, err := a.Chat(context.Background(), "q", sampleFrames())
	require.NoError(t, err)
	assert.Equal(t, KindText, reply.Kind())
	assert.True(t, strings.Contains(reply.(TextReply).Text, "chart.png"))
}

func TestOpenAIAgent_Error(t *testing.T) {
	a := NewOpenAIAgentWithClient(&fakeCompleter{err: errors.New("rate limited")}, "", nil)
	_, err := a.Chat(context.Background(), "q", sampleFrames())
	assert.ErrorContains(t, err, "rate limited")
}
