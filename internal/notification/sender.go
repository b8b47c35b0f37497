// Package notification delivers transactional email to partners. Delivery is
// best effort: callers record the outcome but never fail a business operation
// because mail could not be sent.
package notification

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/gaihekinavi/platform/internal/config"
	"go.uber.org/zap"
)

// ReferralNotice carries everything the referral email template needs.
type ReferralNotice struct {
	To              string
	CompanyName     string
	DiagnosisNumber string
	CustomerName    string
	Prefecture      string
	ReferralFee     int64
	NewBalance      int64
}

type Sender interface {
	SendReferralNotification(ctx context.Context, notice ReferralNotice) error
}

// New returns the SMTP sender when a host is configured, and a logging no-op
// sender otherwise so development environments work without a mail server.
func New(cfg config.Config, log *zap.Logger) Sender {
	if cfg.Email.SMTPHost == "" {
		return &logSender{log: log.Named("notification.log")}
	}
	return &smtpSender{cfg: cfg.Email, log: log.Named("notification.smtp")}
}

type smtpSender struct {
	cfg config.EmailConfig
	log *zap.Logger
}

func (s *smtpSender) SendReferralNotification(ctx context.Context, notice ReferralNotice) error {
	subject := fmt.Sprintf("【外壁ナビ】新規案件のご紹介 (%s)", notice.DiagnosisNumber)

	var body strings.Builder
	fmt.Fprintf(&body, "%s 様\r\n\r\n", notice.CompanyName)
	body.WriteString("新しい外壁塗装の案件をご紹介いたします。\r\n\r\n")
	fmt.Fprintf(&body, "診断番号: %s\r\n", notice.DiagnosisNumber)
	fmt.Fprintf(&body, "お客様名: %s\r\n", notice.CustomerName)
	fmt.Fprintf(&body, "都道府県: %s\r\n", notice.Prefecture)
	fmt.Fprintf(&body, "紹介料: %d円\r\n", notice.ReferralFee)
	fmt.Fprintf(&body, "デポジット残高: %d円\r\n\r\n", notice.NewBalance)
	body.WriteString("管理画面より案件の詳細をご確認ください。\r\n")

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		s.cfg.SMTPFrom, notice.To, subject, body.String())

	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)
	var auth smtp.Auth
	if s.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}

	if err := smtp.SendMail(addr, auth, s.cfg.SMTPFrom, []string{notice.To}, []byte(msg)); err != nil {
		s.log.Error("failed to send referral notification",
			zap.String("to", notice.To),
			zap.String("diagnosis_number", notice.DiagnosisNumber),
			zap.Error(err),
		)
		return err
	}

	s.log.Info("referral notification sent",
		zap.String("to", notice.To),
		zap.String("diagnosis_number", notice.DiagnosisNumber),
	)
	return nil
}

type logSender struct {
	log *zap.Logger
}

func (s *logSender) SendReferralNotification(_ context.Context, notice ReferralNotice) error {
	s.log.Info("referral notification (smtp not configured, logged only)",
		zap.String("to", notice.To),
		zap.String("diagnosis_number", notice.DiagnosisNumber),
		zap.Int64("referral_fee", notice.ReferralFee),
	)
	return nil
}
