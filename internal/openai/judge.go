package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// JudgeField is the single array-of-strings field the judge must return.
const JudgeField = "supporting_chunk_ids"

// SchemaSpec names a JSON schema for a structured response.
type SchemaSpec struct {
	Name       string
	Definition jsonschema.Definition
}

// JudgeSchema is the response schema for attribution judgements.
var JudgeSchema = SchemaSpec{
	Name: "chunk_attribution",
	Definition: jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			JudgeField: {
				Type:        jsonschema.Array,
				Description: "Identifiers of source chunks that support the generated passage",
				Items:       &jsonschema.Definition{Type: jsonschema.String},
			},
		},
		Required:             []string{JudgeField},
		AdditionalProperties: false,
	},
}

const judgeSystemPrompt = `You verify news attribution. You receive one passage from a generated article and a catalog of source passages keyed by id.
Return the ids of every source passage whose facts support the generated passage. Use only ids from the catalog. Return an empty list when none apply.`

// CatalogEntry is one candidate source chunk shown to the judge.
type CatalogEntry struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// JudgeRequest asks which catalog entries support Generated.
type JudgeRequest struct {
	Generated string
	Catalog   []CatalogEntry
}

// JudgeOutcome tags a JudgeResult.
type JudgeOutcome int

const (
	// JudgeOK carries the parsed ids.
	JudgeOK JudgeOutcome = iota
	// JudgeSchemaError means the provider answered but not in the schema.
	JudgeSchemaError
	// JudgeFailed means the call itself failed.
	JudgeFailed
)

func (o JudgeOutcome) String() string {
	switch o {
	case JudgeOK:
		return "ok"
	case JudgeSchemaError:
		return "schema_error"
	case JudgeFailed:
		return "failed"
	}
	return "unknown"
}

// JudgeResult is Ok(IDs), SchemaError(Raw) or Failed(Err).
type JudgeResult struct {
	Outcome JudgeOutcome
	IDs     []string
	Raw     string
	Err     error
}

// AsError converts a non-OK result into a provider error. OK yields nil.
func (r JudgeResult) AsError() error {
	switch r.Outcome {
	case JudgeOK:
		return nil
	case JudgeSchemaError:
		return Classify(fmt.Errorf("judge response does not match schema: %w", r.Err))
	}
	return r.Err
}

// JudgeSupport asks the chat model which catalog ids support the generated
// passage. The response is never trusted beyond its shape; callers check ids
// against their catalog.
func (c *Client) JudgeSupport(ctx context.Context, req JudgeRequest) JudgeResult {
	if c.chat == nil {
		return JudgeResult{Outcome: JudgeFailed, Err: Classify(errors.New("judge model not configured"))}
	}
	user, err := buildJudgePrompt(req)
	if err != nil {
		return JudgeResult{Outcome: JudgeFailed, Err: Classify(err)}
	}
	raw, err := c.chat.CompleteJSON(ctx, ChatRequest{System: judgeSystemPrompt, User: user, Schema: JudgeSchema})
	if err != nil {
		return JudgeResult{Outcome: JudgeFailed, Err: fmt.Errorf("failed to run judge: %w", Classify(err))}
	}
	return ParseJudgeOutput(raw)
}

func buildJudgePrompt(req JudgeRequest) (string, error) {
	catalog, err := json.Marshal(req.Catalog)
	if err != nil {
		return "", fmt.Errorf("failed to encode catalog: %w", err)
	}
	var b strings.Builder
	b.WriteString("Generated passage:\n")
	b.WriteString(req.Generated)
	b.WriteString("\n\nSource catalog:\n")
	b.Write(catalog)
	return b.String(), nil
}

// ParseJudgeOutput strictly decodes a judge response. Unknown fields, a
// missing or null id list, non-string ids and trailing content are schema
// errors.
func ParseJudgeOutput(raw string) JudgeResult {
	var body struct {
		IDs *[]string `json:"supporting_chunk_ids"`
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return JudgeResult{Outcome: JudgeSchemaError, Raw: raw, Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return JudgeResult{Outcome: JudgeSchemaError, Raw: raw, Err: errors.New("trailing content after JSON object")}
	}
	if body.IDs == nil {
		return JudgeResult{Outcome: JudgeSchemaError, Raw: raw, Err: fmt.Errorf("missing %s", JudgeField)}
	}
	return JudgeResult{Outcome: JudgeOK, IDs: *body.IDs, Raw: raw}
}
