package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"talentrag/apps/backend/features/document"
	"talentrag/apps/backend/features/facts"
	"talentrag/apps/backend/internal/apperr"
	"talentrag/apps/backend/internal/retrieval"
	"talentrag/apps/backend/internal/vector"
)

const (
	ToolSearchResumes  = "talentrag_search_resumes"
	ToolFindCandidate  = "talentrag_find_candidate"
	ToolQueryDocuments = "talentrag_query_documents"
	ToolSearchFacts    = "talentrag_search_facts"
)

type CallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema interface{} `json:"inputSchema"`
}

type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

type ToolResult struct {
	Content []ToolContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type ToolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type SearchResumesArgs struct {
	Query       string `json:"query"`
	Limit       int    `json:"limit,omitempty"`
	Name        string `json:"name,omitempty"`
	CandidateID string `json:"candidate_id,omitempty"`
}

type FindCandidateArgs struct {
	Name  string `json:"name"`
	Limit int    `json:"limit,omitempty"`
}

type QueryDocumentsArgs struct {
	Query      string             `json:"query,omitempty"`
	Collection string             `json:"collection,omitempty"`
	Filters    []retrieval.Filter `json:"filters,omitempty"`
	Limit      int                `json:"limit,omitempty"`
}

type SearchFactsArgs struct {
	ChatID string         `json:"chat_id"`
	Query  string         `json:"query"`
	Where  map[string]any `json:"where,omitempty"`
	Limit  int            `json:"limit,omitempty"`
}

func object(required []string, props map[string]interface{}) map[string]interface{} {
	schema := map[string]interface{}{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "description": description}
}

var toolList = []Tool{
	{
		Name: ToolSearchResumes,
		Description: `Semantic search over uploaded resumes. Returns the best matching resume fragments with the candidate name and file.

Pass candidate_id to stay within one candidate's resume; name does the same by normalized name when the id is unknown.

USAGE EXAMPLE:
talentrag_search_resumes(query="golang kubernetes", limit=5)`,
		InputSchema: object([]string{"query"}, map[string]interface{}{
			"query":        prop("string", "What to look for"),
			"limit":        prop("integer", "Max results, 1-20 (default 5)"),
			"name":         prop("string", "Restrict to a candidate name"),
			"candidate_id": prop("string", "Restrict to a candidate id (wins over name)"),
		}),
	},
	{
		Name: ToolFindCandidate,
		Description: `Look up the resume fragments of a candidate by name. Case, punctuation and extra spaces are ignored.

USAGE EXAMPLE:
talentrag_find_candidate(name="Иванов Иван")`,
		InputSchema: object([]string{"name"}, map[string]interface{}{
			"name":  prop("string", "Candidate full name"),
			"limit": prop("integer", "Max results, 1-50 (default 5)"),
		}),
	},
	{
		Name: ToolQueryDocuments,
		Description: `Query indexed resumes, vacancies and dialogues. With a query the results are ranked by similarity; without one the filters are applied as a plain scan.

Filters are combined with AND. Operators: $eq, $ne, $gt, $gte, $lt, $lte, $in, $nin.

USAGE EXAMPLE:
talentrag_query_documents(query="backend developer", filters=[{"field": "structured_data.total_experience_months", "operator": "$gte", "value": 36}])`,
		InputSchema: object(nil, map[string]interface{}{
			"query":      prop("string", "Similarity query text"),
			"collection": prop("string", "Collection name (default collection when empty)"),
			"filters": map[string]interface{}{
				"type":        "array",
				"description": "Metadata conditions {field, operator, value}",
				"items": object([]string{"field", "operator", "value"}, map[string]interface{}{
					"field":    prop("string", "Metadata key, dotted for nested fields"),
					"operator": prop("string", "Comparison operator"),
					"value":    map[string]interface{}{"description": "Scalar, or list for $in/$nin"},
				}),
			},
			"limit": prop("integer", "Max results (default from settings)"),
		}),
	},
	{
		Name: ToolSearchFacts,
		Description: `Search the facts remembered for a chat.

USAGE EXAMPLE:
talentrag_search_facts(chat_id="42", query="salary expectations", where={"status": "confirmed"})`,
		InputSchema: object([]string{"chat_id", "query"}, map[string]interface{}{
			"chat_id": prop("string", "Chat the facts belong to"),
			"query":   prop("string", "What to look for"),
			"where":   prop("object", "Metadata filter, e.g. {\"confidence\": {\"$gte\": 0.5}}"),
			"limit":   prop("integer", "Max results (default from settings)"),
		}),
	},
}

type toolFunc func(h *Handler, ctx context.Context, raw json.RawMessage) ([]vector.Match, error)

var tools = map[string]toolFunc{
	ToolSearchResumes: func(h *Handler, ctx context.Context, raw json.RawMessage) ([]vector.Match, error) {
		var args SearchResumesArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return h.resumes.Search(ctx, args.Query, args.Limit, args.Name, args.CandidateID)
	},
	ToolFindCandidate: func(h *Handler, ctx context.Context, raw json.RawMessage) ([]vector.Match, error) {
		var args FindCandidateArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return h.resumes.FindByName(ctx, args.Name, args.Limit)
	},
	ToolQueryDocuments: func(h *Handler, ctx context.Context, raw json.RawMessage) ([]vector.Match, error) {
		var args QueryDocumentsArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return h.documents.Query(ctx, document.QueryInput{
			Collection: args.Collection,
			QueryText:  args.Query,
			Filters:    args.Filters,
			TopK:       args.Limit,
		})
	},
	ToolSearchFacts: func(h *Handler, ctx context.Context, raw json.RawMessage) ([]vector.Match, error) {
		var args SearchFactsArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return h.facts.Search(ctx, args.ChatID, facts.SearchInput{
			Query: args.Query,
			TopK:  args.Limit,
			Where: args.Where,
		})
	},
}

func decodeArgs(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: invalid arguments: %v", apperr.ErrValidation, err)
	}
	return nil
}

// callTool runs a tool. Bad arguments are a JSON-RPC error; failures of
// the search itself are reported inside the tool result.
func (h *Handler) callTool(ctx context.Context, id interface{}, params CallParams) *JSONRPCResponse {
	fn, ok := tools[params.Name]
	if !ok {
		slog.WarnContext(ctx, "tool not found", "tool", params.Name)
		resp := makeErrorResponse(id, ErrMethodNotFound, "Method not found: "+params.Name)
		return &resp
	}

	matches, err := fn(h, ctx, params.Arguments)
	if err != nil {
		if errors.Is(err, apperr.ErrValidation) {
			resp := makeErrorResponse(id, ErrInvalidParams, err.Error())
			return &resp
		}
		slog.ErrorContext(ctx, "tool execution failed", "tool", params.Name, "error", err)
		return &JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      id,
			Result: ToolResult{
				Content: []ToolContent{{Type: "text", Text: "Error: " + err.Error()}},
				IsError: true,
			},
		}
	}

	slog.InfoContext(ctx, "tool execution completed", "tool", params.Name, "result_count", len(matches))
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result: ToolResult{
			Content: []ToolContent{{Type: "text", Text: formatMatches(matches)}},
		},
	}
}

// headline metadata, printed before the rest in this order
var headline = []string{"name", "candidate_id", "filename", "source_id", "source_type", "document_name"}

func formatMatches(matches []vector.Match) string {
	if len(matches) == 0 {
		return "No results found."
	}

	var b strings.Builder
	for i, m := range matches {
		if m.Distance != nil {
			fmt.Fprintf(&b, "Result %d (Distance: %.3f):\n", i+1, *m.Distance)
		} else {
			fmt.Fprintf(&b, "Result %d:\n", i+1)
		}
		fmt.Fprintf(&b, "ID: %s\n", m.ID)
		for _, k := range headline {
			if v, ok := m.Metadata[k]; ok && v != "" {
				fmt.Fprintf(&b, "%s: %v\n", k, v)
			}
		}
		fmt.Fprintf(&b, "Content:\n%s\n", m.Text)
		b.WriteString("\n---\n")
	}
	return b.String()
}
