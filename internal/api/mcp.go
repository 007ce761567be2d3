package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/upravdom/upravdom/internal/conversation"
	"github.com/upravdom/upravdom/internal/retrieval"
)

// MCPRetriever abstracts corpus retrieval for the MCP layer.
type MCPRetriever interface {
	Retrieve(ctx context.Context, q retrieval.Query) ([]retrieval.ScoredChunk, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Responder Responder
	Retriever MCPRetriever
}

// NewMCPServer creates an MCP server exposing the assistant to MCP clients:
// an `ask` tool running the full answer pipeline (one fresh session per
// call) and a `search_corpus` tool returning raw retrieval results.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"upravdom",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("upravdom — консультант по жилищно-коммунальным вопросам на базе нормативных актов и судебной практики."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Ask the housing-and-utilities assistant a question and get a sourced answer."),
			mcp.WithString("question", mcp.Description("The question, in Russian"), mcp.Required()),
			mcp.WithString("role", mcp.Description("Perspective: resident, executor, or mixed (default)")),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("search_corpus",
			mcp.WithDescription("Semantically search the legal corpus and return scored chunks without generating an answer."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpSearchCorpus(deps),
	)

	return s
}

func mcpAsk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}
		role := ParseRole(req.GetString("role", ""))

		// MCP calls are stateless: each ask runs in a throwaway session, so
		// no clarification round or rating capture happens here.
		sess := conversation.NewSession("mcp", role)
		reply := deps.Responder.Respond(ctx, sess, conversation.Input{Message: question})
		return mcpText(reply.Text), nil
	}
}

func mcpSearchCorpus(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		scored, err := deps.Retriever.Retrieve(ctx, retrieval.Query{Text: query, TopK: limit})
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(scored) == 0 {
			return mcpText("[]"), nil
		}

		type chunkResult struct {
			ID     string   `json:"id"`
			Source string   `json:"source"`
			Text   string   `json:"text"`
			Score  float32  `json:"score"`
			Tags   []string `json:"tags,omitempty"`
		}
		results := make([]chunkResult, len(scored))
		for i, sc := range scored {
			results[i] = chunkResult{
				ID:     sc.Chunk.ID,
				Source: sc.Chunk.Source,
				Text:   sc.Chunk.Content,
				Score:  sc.Score,
				Tags:   sc.Chunk.Tags,
			}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("marshalling results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
