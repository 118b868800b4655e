package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"brokerdesk/internal/domain"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(&mcp.Prompt{
		Name:        "market_order_prompt",
		Description: "Ask the assistant to place a market order.",
		Arguments: []*mcp.PromptArgument{
			{Name: "symbol", Description: "stock symbol", Required: true},
			{Name: "quantity", Description: "number of shares", Required: true},
			{Name: "side", Description: "buy or sell", Required: true},
		},
	}, marketOrderPrompt)

	s.mcp.AddPrompt(&mcp.Prompt{
		Name:        "portfolio_analysis_prompt",
		Description: "Ask the assistant to review the portfolio.",
	}, portfolioAnalysisPrompt)

	s.mcp.AddPrompt(&mcp.Prompt{
		Name:        "market_research_prompt",
		Description: "Ask the assistant to research a symbol before trading.",
		Arguments: []*mcp.PromptArgument{
			{Name: "symbol", Description: "stock symbol", Required: true},
		},
	}, marketResearchPrompt)
}

func userPrompt(description, text string) *mcp.GetPromptResult {
	return &mcp.GetPromptResult{
		Description: description,
		Messages: []*mcp.PromptMessage{{
			Role:    "user",
			Content: &mcp.TextContent{Text: strings.TrimSpace(text)},
		}},
	}
}

func marketOrderPrompt(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	args := req.Params.Arguments
	symbol := domain.NormalizeSymbol(args["symbol"])
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	return userPrompt("Place a market order", fmt.Sprintf(`
Please place a market order:

Symbol: %s
Quantity: %s
Side: %s

Use the place_market_order tool, then confirm the order ID, client order ID and status.
`, symbol, args["quantity"], strings.ToLower(args["side"]))), nil
}

func portfolioAnalysisPrompt(_ context.Context, _ *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return userPrompt("Review the portfolio", `
Please review my portfolio:

1. Account status and buying power
2. Each open position and how it is performing
3. How the portfolio is allocated between cash and positions, and how concentrated it is
4. Suggestions for rebalancing or reducing risk

Start with the get_portfolio_summary tool.
`), nil
}

func marketResearchPrompt(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	symbol := domain.NormalizeSymbol(req.Params.Arguments["symbol"])
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	return userPrompt("Research "+symbol, fmt.Sprintf(`
Before I trade %[1]s, please:

1. Read the latest quote from market://%[1]s/quote
2. Show recent daily bars from market://%[1]s/bars/Day
3. Describe the asset using assets://%[1]s
4. If I hold %[1]s, show the position from positions://%[1]s
`, symbol)), nil
}
