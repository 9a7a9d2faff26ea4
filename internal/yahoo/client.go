// Package yahoo is a small client for the public Yahoo Finance JSON
// endpoints: chart quotes, quoteSummary modules and symbol news.
package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"finagent/internal/config"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

const userAgent = "Mozilla/5.0 (compatible; finagent/1.0)"

// ErrNotFound is returned when Yahoo has no data for a symbol.
var ErrNotFound = errors.New("symbol not found")

type Client struct {
	http      *http.Client
	baseURL   string
	cookieURL string
	limiter   *rate.Limiter

	mu    sync.Mutex
	crumb string
}

func New(cfg config.YahooConfig) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		http: &http.Client{
			Timeout:   30 * time.Second,
			Jar:       jar,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		cookieURL: cfg.CookieURL,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}

type Quote struct {
	Symbol        string          `json:"symbol"`
	Currency      string          `json:"currency"`
	Price         decimal.Decimal `json:"price"`
	PreviousClose decimal.Decimal `json:"previous_close"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	MarketTime    time.Time       `json:"market_time"`
}

// Quote returns the latest regular-market price for symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (*Quote, error) {
	var body struct {
		Chart struct {
			Result []struct {
				Meta struct {
					Symbol             string          `json:"symbol"`
					Currency           string          `json:"currency"`
					RegularMarketPrice decimal.Decimal `json:"regularMarketPrice"`
					ChartPreviousClose decimal.Decimal `json:"chartPreviousClose"`
					RegularMarketTime  int64           `json:"regularMarketTime"`
				} `json:"meta"`
			} `json:"result"`
			Error *apiError `json:"error"`
		} `json:"chart"`
	}

	q := url.Values{"range": {"1d"}, "interval": {"1d"}}
	if err := c.get(ctx, "/v8/finance/chart/"+url.PathEscape(symbol), q, &body); err != nil {
		return nil, err
	}
	if err := body.Chart.Error.err(); err != nil {
		return nil, err
	}
	if len(body.Chart.Result) == 0 {
		return nil, ErrNotFound
	}

	m := body.Chart.Result[0].Meta
	quote := &Quote{
		Symbol:        m.Symbol,
		Currency:      m.Currency,
		Price:         m.RegularMarketPrice,
		PreviousClose: m.ChartPreviousClose,
		Change:        m.RegularMarketPrice.Sub(m.ChartPreviousClose),
	}
	if !m.ChartPreviousClose.IsZero() {
		quote.ChangePercent = quote.Change.Div(m.ChartPreviousClose).Mul(decimal.NewFromInt(100)).Round(2)
	}
	if m.RegularMarketTime > 0 {
		quote.MarketTime = time.Unix(m.RegularMarketTime, 0).UTC()
	}
	return quote, nil
}

type Recommendation struct {
	Period     string `json:"period"`
	StrongBuy  int    `json:"strong_buy"`
	Buy        int    `json:"buy"`
	Hold       int    `json:"hold"`
	Sell       int    `json:"sell"`
	StrongSell int    `json:"strong_sell"`
}

// Recommendations returns the analyst recommendation trend, most recent
// period first.
func (c *Client) Recommendations(ctx context.Context, symbol string) ([]Recommendation, error) {
	var result struct {
		RecommendationTrend struct {
			Trend []struct {
				Period     string `json:"period"`
				StrongBuy  int    `json:"strongBuy"`
				Buy        int    `json:"buy"`
				Hold       int    `json:"hold"`
				Sell       int    `json:"sell"`
				StrongSell int    `json:"strongSell"`
			} `json:"trend"`
		} `json:"recommendationTrend"`
	}
	if err := c.quoteSummary(ctx, symbol, []string{"recommendationTrend"}, &result); err != nil {
		return nil, err
	}

	out := make([]Recommendation, 0, len(result.RecommendationTrend.Trend))
	for _, t := range result.RecommendationTrend.Trend {
		out = append(out, Recommendation{
			Period:     t.Period,
			StrongBuy:  t.StrongBuy,
			Buy:        t.Buy,
			Hold:       t.Hold,
			Sell:       t.Sell,
			StrongSell: t.StrongSell,
		})
	}
	return out, nil
}

type Fundamentals struct {
	Symbol        string           `json:"symbol"`
	CompanyName   string           `json:"company_name"`
	Sector        string           `json:"sector,omitempty"`
	Industry      string           `json:"industry,omitempty"`
	Currency      string           `json:"currency,omitempty"`
	MarketCap     *decimal.Decimal `json:"market_cap,omitempty"`
	PERatio       *decimal.Decimal `json:"pe_ratio,omitempty"`
	PBRatio       *decimal.Decimal `json:"pb_ratio,omitempty"`
	DividendYield *decimal.Decimal `json:"dividend_yield,omitempty"`
	EPS           *decimal.Decimal `json:"eps,omitempty"`
	Beta          *decimal.Decimal `json:"beta,omitempty"`
	High52Week    *decimal.Decimal `json:"52_week_high,omitempty"`
	Low52Week     *decimal.Decimal `json:"52_week_low,omitempty"`
}

// value is the {"raw": ..., "fmt": ...} wrapper quoteSummary uses for numbers.
type value struct {
	Raw *decimal.Decimal `json:"raw"`
}

func (c *Client) Fundamentals(ctx context.Context, symbol string) (*Fundamentals, error) {
	var result struct {
		Price struct {
			Symbol    string `json:"symbol"`
			LongName  string `json:"longName"`
			ShortName string `json:"shortName"`
			Currency  string `json:"currency"`
			MarketCap value  `json:"marketCap"`
		} `json:"price"`
		SummaryProfile struct {
			Sector   string `json:"sector"`
			Industry string `json:"industry"`
		} `json:"summaryProfile"`
		SummaryDetail struct {
			ForwardPE        value `json:"forwardPE"`
			DividendYield    value `json:"dividendYield"`
			Beta             value `json:"beta"`
			FiftyTwoWeekHigh value `json:"fiftyTwoWeekHigh"`
			FiftyTwoWeekLow  value `json:"fiftyTwoWeekLow"`
		} `json:"summaryDetail"`
		DefaultKeyStatistics struct {
			PriceToBook value `json:"priceToBook"`
			TrailingEps value `json:"trailingEps"`
		} `json:"defaultKeyStatistics"`
	}
	modules := []string{"price", "summaryProfile", "summaryDetail", "defaultKeyStatistics"}
	if err := c.quoteSummary(ctx, symbol, modules, &result); err != nil {
		return nil, err
	}

	name := result.Price.LongName
	if name == "" {
		name = result.Price.ShortName
	}
	sym := result.Price.Symbol
	if sym == "" {
		sym = strings.ToUpper(symbol)
	}
	return &Fundamentals{
		Symbol:        sym,
		CompanyName:   name,
		Sector:        result.SummaryProfile.Sector,
		Industry:      result.SummaryProfile.Industry,
		Currency:      result.Price.Currency,
		MarketCap:     result.Price.MarketCap.Raw,
		PERatio:       result.SummaryDetail.ForwardPE.Raw,
		PBRatio:       result.DefaultKeyStatistics.PriceToBook.Raw,
		DividendYield: result.SummaryDetail.DividendYield.Raw,
		EPS:           result.DefaultKeyStatistics.TrailingEps.Raw,
		Beta:          result.SummaryDetail.Beta.Raw,
		High52Week:    result.SummaryDetail.FiftyTwoWeekHigh.Raw,
		Low52Week:     result.SummaryDetail.FiftyTwoWeekLow.Raw,
	}, nil
}

type NewsItem struct {
	Title     string    `json:"title"`
	Publisher string    `json:"publisher"`
	Link      string    `json:"link"`
	Published time.Time `json:"published"`
}

// News returns up to count recent stories about symbol.
func (c *Client) News(ctx context.Context, symbol string, count int) ([]NewsItem, error) {
	var body struct {
		News []struct {
			Title               string `json:"title"`
			Publisher           string `json:"publisher"`
			Link                string `json:"link"`
			ProviderPublishTime int64  `json:"providerPublishTime"`
		} `json:"news"`
	}
	q := url.Values{
		"q":           {symbol},
		"newsCount":   {fmt.Sprint(count)},
		"quotesCount": {"0"},
	}
	if err := c.get(ctx, "/v1/finance/search", q, &body); err != nil {
		return nil, err
	}

	out := make([]NewsItem, 0, len(body.News))
	for _, n := range body.News {
		if len(out) == count {
			break
		}
		item := NewsItem{Title: n.Title, Publisher: n.Publisher, Link: n.Link}
		if n.ProviderPublishTime > 0 {
			item.Published = time.Unix(n.ProviderPublishTime, 0).UTC()
		}
		out = append(out, item)
	}
	return out, nil
}

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *apiError) err() error {
	if e == nil {
		return nil
	}
	if strings.EqualFold(e.Code, "Not Found") {
		return ErrNotFound
	}
	return fmt.Errorf("yahoo: %s: %s", e.Code, e.Description)
}

// quoteSummary fetches the given modules and decodes the first result into
// out. A stale crumb is refreshed once.
func (c *Client) quoteSummary(ctx context.Context, symbol string, modules []string, out any) error {
	var body struct {
		QuoteSummary struct {
			Result []json.RawMessage `json:"result"`
			Error  *apiError         `json:"error"`
		} `json:"quoteSummary"`
	}

	for attempt := 0; attempt < 2; attempt++ {
		crumb, err := c.getCrumb(ctx, attempt > 0)
		if err != nil {
			return err
		}
		q := url.Values{"modules": {strings.Join(modules, ",")}, "crumb": {crumb}}
		err = c.get(ctx, "/v10/finance/quoteSummary/"+url.PathEscape(symbol), q, &body)
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusUnauthorized && attempt == 0 {
			slog.Debug("yahoo: crumb rejected, refreshing")
			continue
		}
		if err != nil {
			return err
		}
		break
	}

	if err := body.QuoteSummary.Error.err(); err != nil {
		return err
	}
	if len(body.QuoteSummary.Result) == 0 {
		return ErrNotFound
	}
	if err := json.Unmarshal(body.QuoteSummary.Result[0], out); err != nil {
		return fmt.Errorf("decoding quoteSummary: %w", err)
	}
	return nil
}

// getCrumb returns the cached crumb, fetching a session cookie and a new
// crumb when none is cached or refresh is set.
func (c *Client) getCrumb(ctx context.Context, refresh bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.crumb != "" && !refresh {
		return c.crumb, nil
	}

	// The cookie endpoint may answer with an error status; only the cookie matters.
	if resp, err := c.do(ctx, c.cookieURL); err == nil {
		resp.Body.Close()
	} else {
		return "", err
	}

	resp, err := c.do(ctx, c.baseURL+"/v1/test/getcrumb")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &statusError{code: resp.StatusCode, path: "/v1/test/getcrumb"}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return "", fmt.Errorf("reading crumb: %w", err)
	}
	crumb := strings.TrimSpace(string(b))
	if crumb == "" {
		return "", errors.New("yahoo: empty crumb")
	}
	c.crumb = crumb
	return crumb, nil
}

type statusError struct {
	code int
	path string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("yahoo: %s returned HTTP %d", e.path, e.code)
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	resp, err := c.do(ctx, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode, path: path}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, u string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	slog.Debug("yahoo: request", "url", u)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo request: %w", err)
	}
	return resp, nil
}
