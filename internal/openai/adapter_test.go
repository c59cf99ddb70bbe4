package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIAdapter_CompleteJSON_SendsStrictSchema(t *testing.T) {
	var body struct {
		Model          string `json:"model"`
		ResponseFormat struct {
			Type       string `json:"type"`
			JSONSchema struct {
				Name   string          `json:"name"`
				Strict bool            `json:"strict"`
				Schema json.RawMessage `json:"schema"`
			} `json:"json_schema"`
		} `json:"response_format"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"{\"supporting_chunk_ids\":[]}"}}]}`))
	}))
	defer srv.Close()

	adapter := NewOpenAIAdapter(Config{APIKey: "test-key", BaseURL: srv.URL, JudgeModel: "judge-model"})

	content, err := adapter.CompleteJSON(context.Background(), ChatRequest{
		System: "system",
		User:   "user",
		Schema: JudgeSchema,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"supporting_chunk_ids":[]}`, content)
	assert.Equal(t, "judge-model", body.Model)
	assert.Equal(t, "json_schema", body.ResponseFormat.Type)
	assert.Equal(t, JudgeSchema.Name, body.ResponseFormat.JSONSchema.Name)
	assert.True(t, body.ResponseFormat.JSONSchema.Strict)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(body.ResponseFormat.JSONSchema.Schema, &schema))
	assert.Equal(t, "object", schema["type"])
	assert.Contains(t, schema["properties"], JudgeField)
}

func TestOpenAIAdapter_CompleteJSON_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	adapter := NewOpenAIAdapter(Config{APIKey: "test-key", BaseURL: srv.URL})

	_, err := adapter.CompleteJSON(context.Background(), ChatRequest{Schema: JudgeSchema})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no completion choices")
}
