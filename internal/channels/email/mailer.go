package email

import (
	"context"
	"fmt"
	"log"
	"mime"
	"strings"
	"time"

	"github.com/AvertonDias/lista-limpeza-facil/internal/config"
)

// ==================== 常量定义 ====================

const (
	mimeVersion     = "1.0"
	contentTypeHTML = `text/html; charset="UTF-8"`
	headerSeparator = "\r\n"
)

// ==================== Mailer ====================

// Mailer 事务性邮件发送器
// 只发简单的 HTML 通知邮件,不支持附件和抄送
type Mailer struct {
	emailConfig config.EmailProvider
	transport   *SMTPTransport
}

// NewMailer 创建邮件发送器实例
func NewMailer(emailConfig config.EmailProvider) *Mailer {
	return &Mailer{
		emailConfig: emailConfig,
		transport:   NewSMTPTransport(emailConfig),
	}
}

// Enabled 是否启用邮件通道
func (mailer *Mailer) Enabled() bool {
	return mailer.emailConfig.Enabled
}

// Send 发送一封 HTML 邮件
// 未启用或收件人为空时静默跳过,邮件失败不影响推送主流程
func (mailer *Mailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if !mailer.Enabled() {
		return nil
	}

	if strings.TrimSpace(to) == "" {
		log.Printf("[Email] 收件人为空,跳过发送: %s", subject)
		return nil
	}

	if mailer.emailConfig.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, mailer.emailConfig.Timeout)
		defer cancel()
	}

	rawMessage := mailer.buildMessage(to, subject, htmlBody)

	if err := mailer.sendWithRetry(ctx, rawMessage, to); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}

	log.Printf("[Email] 邮件已发送: to=%s subject=%q", to, subject)
	return nil
}

// sendWithRetry 按配置的重试策略投递
// SMTP 瞬时故障(连接重置、网关繁忙)隔一个退避间隔后再试
func (mailer *Mailer) sendWithRetry(ctx context.Context, rawMessage []byte, to string) error {
	attempts := mailer.emailConfig.Retry.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = mailer.transport.SendRaw(ctx, rawMessage, []string{to})
		if lastErr == nil {
			return nil
		}

		if attempt == attempts {
			break
		}

		log.Printf("[Email] 第 %d 次发送失败, 稍后重试: %v", attempt, lastErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(mailer.emailConfig.Retry.Backoff):
		}
	}

	return lastErr
}

// ==================== 私有方法 ====================

// buildMessage 构建 MIME 格式的邮件内容
// 主题使用 RFC 2047 编码,兼容非 ASCII 字符
func (mailer *Mailer) buildMessage(to, subject, htmlBody string) []byte {
	var builder strings.Builder

	builder.WriteString("From: " + mailer.formatSender() + headerSeparator)
	builder.WriteString("To: " + to + headerSeparator)
	builder.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + headerSeparator)
	builder.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + headerSeparator)
	builder.WriteString("MIME-Version: " + mimeVersion + headerSeparator)
	builder.WriteString("Content-Type: " + contentTypeHTML + headerSeparator)
	builder.WriteString(headerSeparator)
	builder.WriteString(htmlBody)

	return []byte(builder.String())
}

// formatSender 构建发件人头
func (mailer *Mailer) formatSender() string {
	if mailer.emailConfig.FromName == "" {
		return mailer.emailConfig.From
	}

	encodedName := mime.QEncoding.Encode("utf-8", mailer.emailConfig.FromName)
	return fmt.Sprintf("%s <%s>", encodedName, mailer.emailConfig.From)
}
