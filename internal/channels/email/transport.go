// Package email 通过 SMTP 发送事务性邮件
// 推送之外的兜底通道:反馈事件会额外给清单拥有者发一封邮件
package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"github.com/AvertonDias/lista-limpeza-facil/internal/config"
)

// SMTP 协议默认端口常量
const (
	DefaultSMTPPort         = 25  // 普通 SMTP 端口
	DefaultSMTPSSLPort      = 465 // SSL/TLS 加密端口
	DefaultSMTPSTARTTLSPort = 587 // STARTTLS 升级端口
	DefaultDialTimeout      = 30 * time.Second
)

// SMTPTransport 负责底层 SMTP 连接、认证和数据传输
type SMTPTransport struct {
	emailConfig config.EmailProvider
}

// NewSMTPTransport 创建 SMTP 传输实例
func NewSMTPTransport(emailConfig config.EmailProvider) *SMTPTransport {
	return &SMTPTransport{
		emailConfig: emailConfig,
	}
}

// SendRaw 发送原始 MIME 邮件数据
func (transport *SMTPTransport) SendRaw(ctx context.Context, rawMessage []byte, recipients []string) error {
	if len(recipients) == 0 {
		return errors.New("recipients list cannot be empty")
	}

	client, closeFunction, err := transport.dial(ctx)
	if err != nil {
		return err
	}
	defer closeFunction()

	if err := transport.authenticate(client); err != nil {
		return err
	}

	if err := transport.setMailEnvelope(client, recipients); err != nil {
		return err
	}

	return transport.writeMessageData(client, rawMessage)
}

// resolvePort 根据安全协议推断默认端口
func (transport *SMTPTransport) resolvePort() int {
	if transport.emailConfig.SMTPPort > 0 {
		return transport.emailConfig.SMTPPort
	}

	if transport.emailConfig.UseSSL {
		return DefaultSMTPSSLPort
	}

	if transport.emailConfig.UseTLS {
		return DefaultSMTPSTARTTLSPort
	}

	return DefaultSMTPPort
}

// dial 建立 SMTP 客户端连接
// 根据配置选择 SSL 直连或 STARTTLS 升级,返回客户端和清理函数
func (transport *SMTPTransport) dial(ctx context.Context) (*smtp.Client, func(), error) {
	if transport.emailConfig.SMTPHost == "" {
		return nil, nil, errors.New("smtp host cannot be empty")
	}

	connection, err := transport.dialConnection(ctx)
	if err != nil {
		return nil, nil, err
	}

	if transport.emailConfig.UseSSL {
		return transport.createSSLClient(connection)
	}

	return transport.createPlainClient(connection)
}

// dialConnection 建立底层 TCP 连接,支持 context 超时控制
func (transport *SMTPTransport) dialConnection(ctx context.Context) (net.Conn, error) {
	address := net.JoinHostPort(transport.emailConfig.SMTPHost, fmt.Sprintf("%d", transport.resolvePort()))

	var dialer net.Dialer

	if deadline, hasDeadline := ctx.Deadline(); hasDeadline {
		connection, err := dialer.DialContext(ctx, "tcp", address)
		if err != nil {
			return nil, fmt.Errorf("failed to dial smtp server %s: %w", address, err)
		}

		_ = connection.SetDeadline(deadline)
		return connection, nil
	}

	connection, err := net.DialTimeout("tcp", address, DefaultDialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to dial smtp server %s: %w", address, err)
	}

	return connection, nil
}

// createSSLClient 在已建立的 TCP 连接上进行 TLS 握手
func (transport *SMTPTransport) createSSLClient(connection net.Conn) (*smtp.Client, func(), error) {
	tlsConfig := &tls.Config{
		ServerName: transport.emailConfig.SMTPHost,
	}

	tlsConnection := tls.Client(connection, tlsConfig)

	if err := tlsConnection.Handshake(); err != nil {
		_ = connection.Close()
		return nil, nil, fmt.Errorf("ssl handshake failed: %w", err)
	}

	client, err := smtp.NewClient(tlsConnection, transport.emailConfig.SMTPHost)
	if err != nil {
		_ = connection.Close()
		return nil, nil, fmt.Errorf("failed to create smtp client with ssl: %w", err)
	}

	closeFunction := func() {
		_ = client.Quit()
		_ = connection.Close()
	}

	return client, closeFunction, nil
}

// createPlainClient 创建普通 SMTP 客户端,可选 STARTTLS 升级
func (transport *SMTPTransport) createPlainClient(connection net.Conn) (*smtp.Client, func(), error) {
	client, err := smtp.NewClient(connection, transport.emailConfig.SMTPHost)
	if err != nil {
		_ = connection.Close()
		return nil, nil, fmt.Errorf("failed to create smtp client: %w", err)
	}

	if transport.emailConfig.UseTLS {
		tlsConfig := &tls.Config{
			ServerName: transport.emailConfig.SMTPHost,
		}

		if err = client.StartTLS(tlsConfig); err != nil {
			_ = client.Quit()
			_ = connection.Close()
			return nil, nil, fmt.Errorf("starttls upgrade failed: %w", err)
		}
	}

	closeFunction := func() {
		_ = client.Quit()
		_ = connection.Close()
	}

	return client, closeFunction, nil
}

// authenticate 执行 SMTP 身份认证
// 未配置用户名密码时尝试匿名发送,部分服务器允许
func (transport *SMTPTransport) authenticate(client *smtp.Client) error {
	if transport.emailConfig.Username == "" || transport.emailConfig.Password == "" {
		return nil
	}

	authentication := smtp.PlainAuth(
		"",
		transport.emailConfig.Username,
		transport.emailConfig.Password,
		transport.emailConfig.SMTPHost,
	)

	if err := client.Auth(authentication); err != nil {
		return fmt.Errorf("smtp authentication failed: %w", err)
	}

	return nil
}

// setMailEnvelope 设置发件人(MAIL FROM)和收件人(RCPT TO)
func (transport *SMTPTransport) setMailEnvelope(client *smtp.Client, recipients []string) error {
	if err := client.Mail(transport.emailConfig.From); err != nil {
		return fmt.Errorf("MAIL FROM command failed: %w", err)
	}

	for _, recipient := range recipients {
		if recipient == "" {
			continue
		}

		if err := client.Rcpt(recipient); err != nil {
			return fmt.Errorf("RCPT TO command failed for %s: %w", recipient, err)
		}
	}

	return nil
}

// writeMessageData 发送 DATA 命令并传输邮件内容
func (transport *SMTPTransport) writeMessageData(client *smtp.Client, rawMessage []byte) error {
	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}

	if _, err = writer.Write(rawMessage); err != nil {
		return fmt.Errorf("failed to write message body: %w", err)
	}

	if err = writer.Close(); err != nil {
		return fmt.Errorf("failed to close message body: %w", err)
	}

	return nil
}
