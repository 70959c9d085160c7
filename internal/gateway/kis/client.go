// Package kis is the Korea Investment & Securities Open API gateway:
// market data, account state and order execution for overseas (US) equities.
package kis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"haru/internal/config"
	"haru/internal/logger"
	"haru/internal/strategy"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// KIS transaction ids (real-account server).
const (
	trOverseasPrice      = "HHDFS00000300" // current price
	trOverseasDailyPrice = "HHDFS76240000" // daily closes
	trOverseasBalance    = "TTTS3012R"     // holdings
	trOverseasPsAmount   = "TTTS3007R"     // orderable amount
	trOverseasBuy        = "TTTT1002U"     // market/limit buy
	trOverseasSell       = "TTTT1006U"     // market/limit sell
)

// Order sides accepted by SubmitMarketOrder.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// orderExchange maps quote-exchange codes to the codes the order endpoints
// expect (the two endpoint families disagree, as in the venue docs).
var orderExchange = map[string]string{
	"NYS": "NYSE",
	"NAS": "NASD",
	"AMS": "AMEX",
}

// Client talks to the KIS Open API. All methods are safe for sequential
// use within one run; the embedded limiter throttles every call.
type Client struct {
	baseURL     *url.URL
	httpClient  *http.Client
	limiter     *rate.Limiter
	appKey      string
	appSecret   string
	account     string
	productCode string
	liveOrders  bool
	tokens      tokenSource
}

// NewClient builds a client from configuration. When trading.live_orders is
// false, order submissions are logged and answered with a synthetic id
// instead of reaching the venue.
func NewClient(kcfg config.KISConfig, tcfg config.TradingConfig) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(kcfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("parsing kis.base_url failed: %w", err)
	}
	timeout := time.Duration(kcfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	perSec := kcfg.RateLimitPerSec
	if perSec <= 0 {
		perSec = 15
	}
	return &Client{
		baseURL:     parsed,
		httpClient:  &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(rate.Limit(perSec), perSec),
		appKey:      strings.TrimSpace(kcfg.AppKey),
		appSecret:   strings.TrimSpace(kcfg.AppSecret),
		account:     strings.TrimSpace(kcfg.AccountNumber),
		productCode: strings.TrimSpace(kcfg.AccountProductCode),
		liveOrders:  tcfg.LiveOrders,
	}, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Quote returns the last traded price for one symbol.
func (c *Client) Quote(ctx context.Context, symbol, exchange string) (float64, error) {
	params := url.Values{}
	params.Set("AUTH", "")
	params.Set("EXCD", strings.ToUpper(exchange))
	params.Set("SYMB", symbol)
	raw, err := c.doGet(ctx, "/uapi/overseas-price/v1/quotations/price", trOverseasPrice, params)
	if err != nil {
		return 0, &MarketDataError{Symbol: symbol, Op: "quote", Err: err}
	}
	price := gjson.GetBytes(raw, "output.last").Float()
	if price <= 0 {
		return 0, &MarketDataError{Symbol: symbol, Op: "quote", Err: fmt.Errorf("venue returned empty last price")}
	}
	return price, nil
}

// DailyCloses returns up to days daily closing prices, most recent first,
// matching the ordering the indicator helpers expect. Fewer rows than
// requested is not an error; indicators degrade to their sentinels.
func (c *Client) DailyCloses(ctx context.Context, symbol, exchange string, days int) ([]float64, error) {
	params := url.Values{}
	params.Set("AUTH", "")
	params.Set("EXCD", strings.ToUpper(exchange))
	params.Set("SYMB", symbol)
	params.Set("GUBN", "0") // daily rows
	params.Set("BYMD", "")
	params.Set("MODP", "1")
	raw, err := c.doGet(ctx, "/uapi/overseas-price/v1/quotations/dailyprice", trOverseasDailyPrice, params)
	if err != nil {
		return nil, &MarketDataError{Symbol: symbol, Op: "dailyprice", Err: err}
	}
	rows := gjson.GetBytes(raw, "output2")
	closes := make([]float64, 0, days)
	rows.ForEach(func(_, row gjson.Result) bool {
		if len(closes) >= days {
			return false
		}
		if v := row.Get("clos").Float(); v > 0 {
			closes = append(closes, v)
		}
		return true
	})
	return closes, nil
}

// Positions returns the account's open overseas holdings.
func (c *Client) Positions(ctx context.Context) ([]strategy.Position, error) {
	params := url.Values{}
	params.Set("CANO", c.account)
	params.Set("ACNT_PRDT_CD", c.productCode)
	params.Set("OVRS_EXCG_CD", "NASD")
	params.Set("TR_CRCY_CD", "USD")
	params.Set("CTX_AREA_FK200", "")
	params.Set("CTX_AREA_NK200", "")
	raw, err := c.doGet(ctx, "/uapi/overseas-stock/v1/trading/inquire-balance", trOverseasBalance, params)
	if err != nil {
		return nil, &AccountError{Op: "positions", Err: err}
	}
	var positions []strategy.Position
	gjson.GetBytes(raw, "output1").ForEach(func(_, row gjson.Result) bool {
		qty := row.Get("ovrs_cblc_qty").Int()
		if qty <= 0 {
			return true
		}
		positions = append(positions, strategy.Position{
			Symbol:       strings.ToUpper(row.Get("ovrs_pdno").String()),
			Quantity:     qty,
			AvgCost:      row.Get("pchs_avg_pric").Float(),
			CurrentPrice: row.Get("now_pric2").Float(),
		})
		return true
	})
	return positions, nil
}

// BuyingPower returns the USD amount orderable for one symbol at the given
// price. KIS exposes orderable cash per symbol rather than one account-wide
// figure, which suits the sizer: it is queried right before sizing an entry.
func (c *Client) BuyingPower(ctx context.Context, symbol, exchange string, price float64) (float64, error) {
	params := url.Values{}
	params.Set("CANO", c.account)
	params.Set("ACNT_PRDT_CD", c.productCode)
	params.Set("OVRS_EXCG_CD", mapOrderExchange(exchange))
	params.Set("OVRS_ORD_UNPR", formatPrice(price))
	params.Set("ITEM_CD", symbol)
	raw, err := c.doGet(ctx, "/uapi/overseas-stock/v1/trading/inquire-psamount", trOverseasPsAmount, params)
	if err != nil {
		return 0, &AccountError{Op: "buying-power", Err: err}
	}
	return gjson.GetBytes(raw, "output.ovrs_ord_psbl_amt").Float(), nil
}

// SubmitMarketOrder places a market order and returns the venue order id.
// In simulation mode no request is sent and a SIM- id is returned.
func (c *Client) SubmitMarketOrder(ctx context.Context, symbol, exchange, side string, quantity int64) (string, error) {
	if quantity <= 0 {
		return "", &OrderError{Symbol: symbol, Side: side, Err: fmt.Errorf("quantity must be positive")}
	}
	trID := trOverseasBuy
	if side == SideSell {
		trID = trOverseasSell
	} else if side != SideBuy {
		return "", &OrderError{Symbol: symbol, Side: side, Err: fmt.Errorf("unknown side %q", side)}
	}

	if !c.liveOrders {
		orderID := "SIM-" + uuid.NewString()[:8]
		logger.Infof("simulated %s order: %s x %d (%s), order_id=%s", side, symbol, quantity, exchange, orderID)
		return orderID, nil
	}

	body := map[string]string{
		"CANO":            c.account,
		"ACNT_PRDT_CD":    c.productCode,
		"OVRS_EXCG_CD":    mapOrderExchange(exchange),
		"PDNO":            symbol,
		"ORD_QTY":         strconv.FormatInt(quantity, 10),
		"OVRS_ORD_UNPR":   "0", // market order carries no price
		"ORD_SVR_DVSN_CD": "0",
		"ORD_DVSN":        "00",
	}
	raw, err := c.doPost(ctx, "/uapi/overseas-stock/v1/trading/order", trID, body)
	if err != nil {
		return "", &OrderError{
			Symbol:            symbol,
			Side:              side,
			InsufficientFunds: isInsufficientFunds(err),
			Err:               err,
		}
	}
	orderID := gjson.GetBytes(raw, "output.ODNO").String()
	if orderID == "" {
		return "", &OrderError{Symbol: symbol, Side: side, Err: fmt.Errorf("venue returned no order number")}
	}
	return orderID, nil
}

// venueError is an rt_cd != 0 response; msg_cd/msg1 identify the cause.
type venueError struct {
	Code    string
	Message string
}

func (e *venueError) Error() string {
	return fmt.Sprintf("venue error %s: %s", e.Code, e.Message)
}

// isInsufficientFunds inspects a venue rejection for the deposit-shortage
// case, which the runner treats as NO_BALANCE rather than a failure.
func isInsufficientFunds(err error) bool {
	ve, ok := err.(*venueError)
	if !ok {
		return false
	}
	msg := strings.ToLower(ve.Message)
	return strings.Contains(msg, "insufficient") ||
		strings.Contains(ve.Message, "잔고") ||
		strings.Contains(ve.Message, "증거금")
}

func (c *Client) doGet(ctx context.Context, path, trID string, params url.Values) ([]byte, error) {
	endpoint, err := c.resolveEndpoint(path)
	if err != nil {
		return nil, err
	}
	endpoint.RawQuery = params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, req, trID)
}

func (c *Client) doPost(ctx context.Context, path, trID string, payload any) ([]byte, error) {
	endpoint, err := c.resolveEndpoint(path)
	if err != nil {
		return nil, err
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request failed: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	return c.send(ctx, req, trID)
}

func (c *Client) send(ctx context.Context, req *http.Request, trID string) ([]byte, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("authorization", "Bearer "+token)
	req.Header.Set("appkey", c.appKey)
	req.Header.Set("appsecret", c.appSecret)
	req.Header.Set("tr_id", trID)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if rt := gjson.GetBytes(raw, "rt_cd"); rt.Exists() && rt.String() != "0" {
		return nil, &venueError{
			Code:    gjson.GetBytes(raw, "msg_cd").String(),
			Message: strings.TrimSpace(gjson.GetBytes(raw, "msg1").String()),
		}
	}
	return raw, nil
}

func (c *Client) resolveEndpoint(path string) (*url.URL, error) {
	if c.baseURL == nil {
		return nil, fmt.Errorf("kis base url not set")
	}
	ref, err := url.Parse(path)
	if err != nil {
		return nil, err
	}
	return c.baseURL.ResolveReference(ref), nil
}

func readBody(resp *http.Response) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		if msg := gjson.GetBytes(raw, "msg1").String(); msg != "" {
			return nil, fmt.Errorf("venue returned %s: %s", resp.Status, strings.TrimSpace(msg))
		}
		return nil, fmt.Errorf("venue returned %s: %s", resp.Status, truncate(raw, 200))
	}
	return raw, nil
}

func mapOrderExchange(exchange string) string {
	if mapped, ok := orderExchange[strings.ToUpper(exchange)]; ok {
		return mapped
	}
	logger.Warnf("unknown exchange code %q, routing order to NYSE", exchange)
	return "NYSE"
}

func formatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', 2, 64)
}

func truncate(raw []byte, n int) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
