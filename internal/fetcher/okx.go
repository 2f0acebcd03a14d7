package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"okx-stoch-sentry/pkg/types"
)

// OKX限频错误码
const okxCodeRateLimited = "50011"

// 周期到OKX bar参数的映射，小时及以上使用大写
var okxBarCodes = map[types.Granularity]string{
	types.Granularity1m:  "1m",
	types.Granularity3m:  "3m",
	types.Granularity5m:  "5m",
	types.Granularity15m: "15m",
	types.Granularity30m: "30m",
	types.Granularity1h:  "1H",
	types.Granularity2h:  "2H",
	types.Granularity4h:  "4H",
	types.Granularity1d:  "1D",
	types.Granularity1w:  "1W",
}

// BarCode 返回OKX接口使用的bar参数
func BarCode(g types.Granularity) (string, error) {
	code, ok := okxBarCodes[g]
	if !ok {
		return "", fmt.Errorf("unsupported granularity: %s", g)
	}
	return code, nil
}

// OKXClient OKX V5 公共行情REST客户端
type OKXClient struct {
	baseURL    string
	httpClient *http.Client
}

// okxResponse OKX V5 通用响应
type okxResponse struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// Instrument 交易产品基础信息
type Instrument struct {
	InstID    string `json:"instId"`
	InstType  string `json:"instType"`
	SettleCcy string `json:"settleCcy"`
	State     string `json:"state"`
	ListTime  string `json:"listTime"` // 毫秒时间戳
}

// Ticker 24小时行情
type Ticker struct {
	InstID    string `json:"instId"`
	Last      string `json:"last"`
	Open24h   string `json:"open24h"`
	VolCcy24h string `json:"volCcy24h"`
	Ts        string `json:"ts"`
}

// NewHTTPClient 按网络配置创建HTTP客户端（超时 + 可选代理）
func NewHTTPClient(network types.NetworkConfig) *http.Client {
	timeout := network.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if network.Proxy != "" {
		proxyURL, err := url.Parse(network.Proxy)
		if err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
			zap.L().Info("✅ 已配置HTTP代理", zap.String("proxy", network.Proxy))
		} else {
			zap.L().Warn("⚠️ 代理地址格式错误", zap.Error(err))
		}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// NewOKXClient 创建OKX客户端，httpClient为nil时使用默认客户端
func NewOKXClient(baseURL string, httpClient *http.Client) *OKXClient {
	if httpClient == nil {
		httpClient = NewHTTPClient(types.NetworkConfig{})
	}
	return &OKXClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Candles 获取最近limit根K线，按时间升序返回，重复时间戳只保留一根
func (c *OKXClient) Candles(ctx context.Context, symbol string, g types.Granularity, limit int) ([]types.KLine, error) {
	bar, err := BarCode(g)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("instId", symbol)
	query.Set("bar", bar)
	query.Set("limit", strconv.Itoa(limit))

	var rows [][]string
	if err := c.get(ctx, "/api/v5/market/candles", query, &rows); err != nil {
		return nil, err
	}

	klines := make([]types.KLine, 0, len(rows))
	for _, row := range rows {
		kline, err := parseCandle(row)
		if err != nil {
			zap.L().Warn("解析K线数据失败", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		klines = append(klines, kline)
	}

	// OKX返回的数据是从新到旧排序
	sort.SliceStable(klines, func(i, j int) bool {
		return klines[i].OpenTime.Before(klines[j].OpenTime)
	})

	return dedupByOpenTime(klines), nil
}

// Instruments 获取指定类型的全部交易产品
func (c *OKXClient) Instruments(ctx context.Context, instType string) ([]Instrument, error) {
	query := url.Values{}
	query.Set("instType", instType)

	var instruments []Instrument
	if err := c.get(ctx, "/api/v5/public/instruments", query, &instruments); err != nil {
		return nil, err
	}
	return instruments, nil
}

// Tickers 获取指定类型的全部24小时行情
func (c *OKXClient) Tickers(ctx context.Context, instType string) ([]Ticker, error) {
	query := url.Values{}
	query.Set("instType", instType)

	var tickers []Ticker
	if err := c.get(ctx, "/api/v5/market/tickers", query, &tickers); err != nil {
		return nil, err
	}
	return tickers, nil
}

// get 发送GET请求并解析data字段；限频统一转换为ErrRateLimited
func (c *OKXClient) get(ctx context.Context, path string, query url.Values, out any) error {
	requestURL := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "OKX-Stoch-Sentry/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || strings.Contains(string(body), "Too Many Requests") {
		return fmt.Errorf("%w: %s returned %d", types.ErrRateLimited, path, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}

	var envelope okxResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.Code == okxCodeRateLimited {
		return fmt.Errorf("%w: code=%s, msg=%s", types.ErrRateLimited, envelope.Code, envelope.Msg)
	}
	if envelope.Code != "0" {
		return fmt.Errorf("okx api error: code=%s, msg=%s", envelope.Code, envelope.Msg)
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

// parseCandle 解析OKX K线: [ts, o, h, l, c, vol, volCcy, volCcyQuote, confirm]
func parseCandle(row []string) (types.KLine, error) {
	if len(row) < 5 {
		return types.KLine{}, fmt.Errorf("malformed candle: %v", row)
	}

	ts, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return types.KLine{}, fmt.Errorf("parse timestamp: %w", err)
	}

	var prices [4]float64
	for i := range prices {
		prices[i], err = strconv.ParseFloat(row[i+1], 64)
		if err != nil {
			return types.KLine{}, fmt.Errorf("parse price: %w", err)
		}
	}

	volume := 0.0
	if len(row) > 5 {
		volume, _ = strconv.ParseFloat(row[5], 64)
	}

	return types.KLine{
		OpenTime: time.UnixMilli(ts),
		Open:     prices[0],
		High:     prices[1],
		Low:      prices[2],
		Close:    prices[3],
		Volume:   volume,
	}, nil
}

func dedupByOpenTime(klines []types.KLine) []types.KLine {
	if len(klines) < 2 {
		return klines
	}
	result := klines[:1]
	for _, k := range klines[1:] {
		if k.OpenTime.Equal(result[len(result)-1].OpenTime) {
			continue
		}
		result = append(result, k)
	}
	return result
}
