package notifier

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"okx-stoch-sentry/pkg/retry"
	"okx-stoch-sentry/pkg/types"
)

// DingTalkTransport 钉钉机器人渠道（可选加签）
type DingTalkTransport struct {
	webhookURL string
	secret     string
	httpClient *http.Client
	now        func() time.Time
}

// DingTalkMessage 钉钉消息结构
type DingTalkMessage struct {
	MsgType  string            `json:"msgtype"`
	Markdown *DingTalkMarkdown `json:"markdown,omitempty"`
	At       *DingTalkAt       `json:"at,omitempty"`
}

type DingTalkMarkdown struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type DingTalkAt struct {
	AtAll bool `json:"isAtAll"`
}

// DingTalkResponse 钉钉API响应
type DingTalkResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// NewDingTalkTransport 创建钉钉渠道
func NewDingTalkTransport(cfg types.DingTalkConfig, httpClient *http.Client) *DingTalkTransport {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &DingTalkTransport{
		webhookURL: cfg.WebhookURL,
		secret:     cfg.Secret,
		httpClient: httpClient,
		now:        time.Now,
	}
}

func (t *DingTalkTransport) Name() string {
	return "dingtalk"
}

// Open webhook无连接状态，会话只持有签名后的地址
func (t *DingTalkTransport) Open(_ context.Context) (Session, error) {
	signedURL, err := t.buildSignedURL()
	if err != nil {
		return nil, fmt.Errorf("%w: 生成签名失败: %v", types.ErrDeliveryPermanent, err)
	}
	return &dingTalkSession{transport: t, url: signedURL}, nil
}

// Classify 429/5xx与网络错误可重试，钉钉业务错误码不重试
func (t *DingTalkTransport) Classify(err error) retry.Class {
	class, _ := classifyNetwork(err)
	return class
}

// generateSignature 生成钉钉加签: base64(HMAC-SHA256(timestamp + "\n" + secret))
func (t *DingTalkTransport) generateSignature(timestamp int64) string {
	stringToSign := fmt.Sprintf("%d\n%s", timestamp, t.secret)

	h := hmac.New(sha256.New, []byte(t.secret))
	h.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// buildSignedURL 构建带签名的URL，未配置secret时原样返回
func (t *DingTalkTransport) buildSignedURL() (string, error) {
	if t.secret == "" {
		return t.webhookURL, nil
	}

	u, err := url.Parse(t.webhookURL)
	if err != nil {
		return "", err
	}

	timestamp := t.now().UnixMilli()
	query := u.Query()
	query.Set("timestamp", fmt.Sprintf("%d", timestamp))
	query.Set("sign", t.generateSignature(timestamp))
	u.RawQuery = query.Encode()

	return u.String(), nil
}

type dingTalkSession struct {
	transport *DingTalkTransport
	url       string
}

func (s *dingTalkSession) Deliver(ctx context.Context, msg Message) error {
	message := &DingTalkMessage{
		MsgType: "markdown",
		Markdown: &DingTalkMarkdown{
			Title: msg.Subject,
			Text:  "## " + msg.Subject + "\n\n" + htmlToMarkdown(msg.Body),
		},
		At: &DingTalkAt{
			AtAll: false, // 不@所有人，避免过度打扰
		},
	}

	jsonData, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%w: 序列化消息失败: %v", types.ErrDeliveryPermanent, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrDeliveryPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.transport.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return fmt.Errorf("%w: 钉钉返回状态码 %d", types.ErrDeliveryTransient, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: 钉钉返回状态码 %d", types.ErrDeliveryPermanent, resp.StatusCode)
	}

	var dingResp DingTalkResponse
	if err := json.NewDecoder(resp.Body).Decode(&dingResp); err != nil {
		return fmt.Errorf("%w: 解析响应失败: %v", types.ErrDeliveryPermanent, err)
	}
	if dingResp.ErrCode != 0 {
		return fmt.Errorf("%w: 钉钉API错误 [%d]: %s", types.ErrDeliveryPermanent, dingResp.ErrCode, dingResp.ErrMsg)
	}

	return nil
}

func (s *dingTalkSession) Close() error {
	return nil
}

var (
	alertDivPattern = regexp.MustCompile(`<div style="[^"]*color: (\w+);">(.*?)</div>`)
	brPattern       = regexp.MustCompile(`<br\s*/?>`)
)

// htmlToMarkdown 把邮件正文的预警行转换为钉钉支持的 font 标签
func htmlToMarkdown(body string) string {
	text := alertDivPattern.ReplaceAllString(body, `- <font color="$1">**$2**</font>`)
	text = brPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
