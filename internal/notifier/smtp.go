package notifier

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"go.uber.org/zap"
	"okx-stoch-sentry/pkg/retry"
	"okx-stoch-sentry/pkg/types"
)

// SMTP临时失败码，其余4xx/5xx按永久失败处理
var smtpTemporaryCodes = map[int]bool{
	421: true, // 服务不可用，连接即将关闭
	450: true, // 邮箱暂时不可用
	451: true, // 本地处理错误
}

// SMTPTransport 邮件渠道：明文连接后按服务器能力升级STARTTLS，465端口直接TLS
type SMTPTransport struct {
	host     string
	port     int
	username string
	password string
	// tlsConfig 为nil时按host校验证书
	tlsConfig *tls.Config
}

// NewSMTPTransport 创建邮件渠道
func NewSMTPTransport(cfg types.SMTPConfig) *SMTPTransport {
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	return &SMTPTransport{
		host:     cfg.Host,
		port:     port,
		username: cfg.Username,
		password: cfg.Password,
	}
}

func (t *SMTPTransport) Name() string {
	return "smtp"
}

func (t *SMTPTransport) clientTLSConfig() *tls.Config {
	if t.tlsConfig != nil {
		return t.tlsConfig
	}
	return &tls.Config{ServerName: t.host}
}

// Open 建立连接、协商TLS并登录
func (t *SMTPTransport) Open(ctx context.Context) (Session, error) {
	addr := net.JoinHostPort(t.host, strconv.Itoa(t.port))

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if t.port == 465 {
		conn = tls.Client(conn, t.clientTLSConfig())
	}

	client, err := smtp.NewClient(conn, t.host)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if ok, _ := client.Extension("STARTTLS"); ok && t.port != 465 {
		if err := client.StartTLS(t.clientTLSConfig()); err != nil {
			_ = client.Close()
			return nil, err
		}
	}

	if t.username != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(smtp.PlainAuth("", t.username, t.password, t.host)); err != nil {
				_ = client.Close()
				return nil, err
			}
		} else {
			zap.L().Warn("⚠️ SMTP服务器未声明AUTH，跳过登录，发信可能被拒绝",
				zap.String("host", t.host),
				zap.Int("port", t.port),
				zap.String("username", t.username))
		}
	}

	return &smtpSession{client: client}, nil
}

// Classify 4xx临时码、超时和连接中断可重试；认证失败、收件人错误等按服务器结果为准
func (t *SMTPTransport) Classify(err error) retry.Class {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		if smtpTemporaryCodes[protoErr.Code] {
			return retry.Transient
		}
		return retry.Permanent
	}

	class, _ := classifyNetwork(err)
	return class
}

type smtpSession struct {
	client *smtp.Client
}

func (s *smtpSession) Deliver(_ context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("%w: no recipients", types.ErrDeliveryPermanent)
	}

	if err := s.client.Mail(msg.From); err != nil {
		return err
	}
	for _, rcpt := range msg.To {
		if err := s.client.Rcpt(rcpt); err != nil {
			return err
		}
	}

	w, err := s.client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(buildMIME(msg, time.Now())); err != nil {
		_ = w.Close()
		return err
	}
	// Close 读取服务器对DATA的最终确认
	return w.Close()
}

// Close 先QUIT，失败时强制关闭连接
func (s *smtpSession) Close() error {
	if err := s.client.Quit(); err != nil {
		if closeErr := s.client.Close(); closeErr != nil {
			return errors.Join(err, closeErr)
		}
		return err
	}
	return nil
}

// buildMIME 群发邮件，收件人只出现在信封中
func buildMIME(msg Message, now time.Time) []byte {
	contentType := "text/plain"
	if msg.HTML {
		contentType = "text/html"
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", "Trading Bot"), msg.From)
	buf.WriteString("To: undisclosed-recipients:;\r\n")
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", now.Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: %s; charset=UTF-8\r\n", contentType)
	buf.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(msg.Body)
	return buf.Bytes()
}
