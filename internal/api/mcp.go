package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/adcraft/internal/storage"
)

// CampaignReader is the read side of the campaign store used by MCP.
type CampaignReader interface {
	GetCampaign(id string) (storage.Campaign, error)
	ListCampaigns(limit int) ([]storage.Campaign, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Service CampaignService
	Store   CampaignReader
}

// NewMCPServer creates an MCP server with the adcraft tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"adcraft",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("adcraft generates brand advertising campaigns and answers questions about brands from their web pages."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("generate_campaign",
			mcp.WithDescription("Generate and store an advertising campaign for a brand from a prompt and the brand's web pages."),
			mcp.WithString("prompt", mcp.Description("Description of the desired campaign"), mcp.Required()),
			mcp.WithArray("brand_urls", mcp.Description("Brand page URLs used as context"), mcp.WithStringItems()),
		),
		mcpGenerateCampaign(deps),
	)

	s.AddTool(
		mcp.NewTool("ask_brand",
			mcp.WithDescription("Answer a question about a brand using its web pages or previously gathered brand context."),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
			mcp.WithArray("brand_urls", mcp.Description("Optional brand page URLs"), mcp.WithStringItems()),
			mcp.WithBoolean("use_previous_context", mcp.Description("Reuse brand pages gathered by earlier questions")),
		),
		mcpAskBrand(deps),
	)

	s.AddTool(
		mcp.NewTool("get_campaign",
			mcp.WithDescription("Fetch a stored campaign by id."),
			mcp.WithString("campaign_id", mcp.Description("Six character campaign id"), mcp.Required()),
		),
		mcpGetCampaign(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"campaigns://recent",
			"Recent Campaigns",
			mcp.WithResourceDescription("Last 10 stored campaigns (text excerpts only)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpGenerateCampaign(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prompt, err := req.RequireString("prompt")
		if err != nil || prompt == "" {
			return mcpError("prompt is required"), nil
		}
		urls := req.GetStringSlice("brand_urls", nil)

		c, err := deps.Service.ProcessRequest(ctx, prompt, urls)
		if err != nil {
			return mcpError(fmt.Sprintf("campaign generation failed: %v", err)), nil
		}
		return mcpJSON(c)
	}
}

func mcpAskBrand(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil || question == "" {
			return mcpError("question is required"), nil
		}
		urls := req.GetStringSlice("brand_urls", nil)
		usePrevious := req.GetBool("use_previous_context", false)

		answer, err := deps.Service.AnswerBrandQuestion(ctx, question, urls, usePrevious)
		if err != nil {
			return mcpError(fmt.Sprintf("answer failed: %v", err)), nil
		}
		return mcpText(answer), nil
	}
}

func mcpGetCampaign(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("campaign_id")
		if err != nil {
			return mcpError("campaign_id is required"), nil
		}

		c, err := deps.Store.GetCampaign(id)
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError(fmt.Sprintf("campaign %s not found", id)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get campaign: %v", err)), nil
		}
		return mcpJSON(c)
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		campaigns, err := deps.Store.ListCampaigns(10)
		if err != nil {
			return nil, fmt.Errorf("failed to list campaigns: %w", err)
		}

		type campaignSummary struct {
			ID        string `json:"campaign_id"`
			CreatedAt string `json:"created_at"`
			Excerpt   string `json:"excerpt"`
			Images    int    `json:"images"`
		}

		summaries := make([]campaignSummary, len(campaigns))
		for i, c := range campaigns {
			text := c.Text
			if utf8.RuneCountInString(text) > 200 {
				runes := []rune(text)
				text = string(runes[:200]) + "..."
			}
			summaries[i] = campaignSummary{
				ID:        c.ID,
				CreatedAt: c.CreatedAt.Format(time.RFC3339),
				Excerpt:   text,
				Images:    len(c.Images),
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal campaigns: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
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
