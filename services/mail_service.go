package services

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"pricetrack/config"
	"pricetrack/models"

	"github.com/sirupsen/logrus"
)

// Mailer delivers plain-text mail
type Mailer interface {
	SendMail(ctx context.Context, to, subject, body string) error
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends mail through a STARTTLS SMTP relay
type SMTPMailer struct {
	cfg    config.MailConfig
	send   sendFunc
	logger *logrus.Entry
}

// NewSMTPMailer creates a mailer for the configured relay
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{
		cfg:    cfg,
		send:   smtp.SendMail,
		logger: logrus.WithField("component", "mailer"),
	}
}

func (m *SMTPMailer) SendMail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("failed to send mail: empty recipient")
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	addr := m.cfg.Host + ":" + strconv.Itoa(m.cfg.Port)
	msg := buildMessage(m.cfg.From, to, subject, body)
	if err := m.send(addr, auth, m.cfg.From, []string{to}, msg); err != nil {
		m.logger.WithError(err).WithField("to", to).Error("❌ Mail delivery failed")
		return fmt.Errorf("failed to send mail: %w", err)
	}

	m.logger.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("📧 Mail sent")
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.BEncoding.Encode("UTF-8", subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

// FormatPrice renders an amount the way the marketplaces do: 1.234,56 TL
func FormatPrice(price float64) string {
	cents := int64(price*100 + 0.5)
	whole := cents / 100
	frac := cents % 100

	digits := strconv.FormatInt(whole, 10)
	var grouped []string
	for len(digits) > 3 {
		grouped = append([]string{digits[len(digits)-3:]}, grouped...)
		digits = digits[:len(digits)-3]
	}
	grouped = append([]string{digits}, grouped...)

	return fmt.Sprintf("%s,%02d TL", strings.Join(grouped, "."), frac)
}

// AlertMail builds the target-price alert for a product
func AlertMail(product models.TrackedProduct, price float64) (subject, body string) {
	subject = "Fiyat Alarmı: " + product.Name
	body = fmt.Sprintf(
		"%s için fiyat %s oldu.\nHedef fiyatınız: %s\nURL: %s",
		product.Name, FormatPrice(price), FormatPrice(product.TargetPrice), product.URL,
	)
	return subject, body
}

// StatusReportMail builds the periodic report of the test-mode checker
func StatusReportMail(status models.CheckerStatus, now time.Time) (subject, body string) {
	subject = fmt.Sprintf("Test Cron Raporu #%d", status.MailCount)

	logs := status.Logs
	if len(logs) > 10 {
		logs = logs[len(logs)-10:]
	}

	var b strings.Builder
	b.WriteString("🔄 Test Cron Durumu\n\n")
	b.WriteString("📊 İstatistikler:\n")
	fmt.Fprintf(&b, "• Cron %d kez çalıştı\n", status.RunCount)
	fmt.Fprintf(&b, "• Mail %d kez gönderildi\n", status.MailCount)
	fmt.Fprintf(&b, "• Çalışma süresi: %s\n", status.Uptime)
	fmt.Fprintf(&b, "• Test URL: %s\n\n", status.TestURL)
	b.WriteString("📝 Son 10 Log:\n")
	b.WriteString(strings.Join(logs, "\n"))
	fmt.Fprintf(&b, "\n\n⏰ Rapor zamanı: %s", now.Format("02.01.2006 15:04:05"))

	return subject, b.String()
}
