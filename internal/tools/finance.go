package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"finagent/internal/agent"
	"finagent/internal/yahoo"
)

// MarketData is the subset of the Yahoo client the finance toolkit needs.
type MarketData interface {
	Quote(ctx context.Context, symbol string) (*yahoo.Quote, error)
	Recommendations(ctx context.Context, symbol string) ([]yahoo.Recommendation, error)
	Fundamentals(ctx context.Context, symbol string) (*yahoo.Fundamentals, error)
	News(ctx context.Context, symbol string, count int) ([]yahoo.NewsItem, error)
}

// FinanceFeatures selects which finance functions are exposed.
type FinanceFeatures struct {
	StockPrice             bool
	AnalystRecommendations bool
	StockFundamentals      bool
	CompanyNews            bool
}

func AllFinanceFeatures() FinanceFeatures {
	return FinanceFeatures{
		StockPrice:             true,
		AnalystRecommendations: true,
		StockFundamentals:      true,
		CompanyNews:            true,
	}
}

type Finance struct {
	data      MarketData
	features  FinanceFeatures
	newsCount int
}

func NewFinance(data MarketData, features FinanceFeatures, newsCount int) *Finance {
	return &Finance{data: data, features: features, newsCount: newsCount}
}

func (f *Finance) Name() string { return "finance" }

func (f *Finance) Tools() []agent.Tool {
	var out []agent.Tool
	if f.features.StockPrice {
		out = append(out, &symbolTool{
			name: "get_current_stock_price",
			desc: "Get the current stock price and daily change for a ticker symbol.",
			run: func(ctx context.Context, symbol string) (any, error) {
				return f.data.Quote(ctx, symbol)
			},
		})
	}
	if f.features.AnalystRecommendations {
		out = append(out, &symbolTool{
			name: "get_analyst_recommendations",
			desc: "Get analyst recommendation counts (strong buy to strong sell) for a ticker symbol, most recent period first.",
			run: func(ctx context.Context, symbol string) (any, error) {
				return f.data.Recommendations(ctx, symbol)
			},
		})
	}
	if f.features.StockFundamentals {
		out = append(out, &symbolTool{
			name: "get_stock_fundamentals",
			desc: "Get fundamental data for a ticker symbol: sector, market cap, P/E, P/B, EPS, beta and 52 week range.",
			run: func(ctx context.Context, symbol string) (any, error) {
				return f.data.Fundamentals(ctx, symbol)
			},
		})
	}
	if f.features.CompanyNews {
		out = append(out, &newsTool{f: f})
	}
	return out
}

func normalizeSymbol(s string) (string, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", fmt.Errorf("symbol is required")
	}
	return s, nil
}

// symbolTool is a finance function that takes only a ticker symbol.
type symbolTool struct {
	name string
	desc string
	run  func(ctx context.Context, symbol string) (any, error)
}

func (t *symbolTool) Name() string        { return t.name }
func (t *symbolTool) Description() string { return t.desc }

func (t *symbolTool) InputSchema() any {
	return objectSchema(map[string]any{
		"symbol": stringProp("Stock ticker symbol, e.g. AAPL"),
	}, "symbol")
}

func (t *symbolTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Symbol string `json:"symbol"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("parsing %s input: %w", t.name, err)
	}
	symbol, err := normalizeSymbol(args.Symbol)
	if err != nil {
		return "", err
	}

	slog.Debug("finance: call", "tool", t.name, "symbol", symbol)
	v, err := t.run(ctx, symbol)
	if err != nil {
		return "", fmt.Errorf("fetching data for %s: %w", symbol, err)
	}
	return toJSON(v)
}

type newsTool struct {
	f *Finance
}

func (t *newsTool) Name() string { return "get_company_news" }
func (t *newsTool) Description() string {
	return "Get the latest news stories about a company by ticker symbol."
}

func (t *newsTool) InputSchema() any {
	return objectSchema(map[string]any{
		"symbol": stringProp("Stock ticker symbol, e.g. AAPL"),
		"num_stories": map[string]any{
			"type":        "integer",
			"description": "Number of stories to return; 0 uses the default",
		},
	}, "symbol", "num_stories")
}

func (t *newsTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Symbol     string `json:"symbol"`
		NumStories int    `json:"num_stories"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("parsing get_company_news input: %w", err)
	}
	symbol, err := normalizeSymbol(args.Symbol)
	if err != nil {
		return "", err
	}
	count := args.NumStories
	if count <= 0 {
		count = t.f.newsCount
	}
	count = min(count, 20)

	news, err := t.f.data.News(ctx, symbol, count)
	if err != nil {
		return "", fmt.Errorf("fetching news for %s: %w", symbol, err)
	}
	if len(news) == 0 {
		return fmt.Sprintf("No news found for %s.", symbol), nil
	}
	return toJSON(news)
}
