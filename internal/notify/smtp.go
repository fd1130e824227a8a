package notify

import (
	"context"
	"errors"

	"smartshop/internal/usecase"

	"gopkg.in/gomail.v2"
)

var ErrNoRecipient = errors.New("no recipient")

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	AdminEmail string
}

// gomailでプレーンテキストのメールを送る
type SMTPNotifier struct {
	sender     mailSender
	from       string
	adminEmail string
}

func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{
		sender:     gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:       cfg.From,
		adminEmail: cfg.AdminEmail,
	}
}

func (n *SMTPNotifier) SendConfirmation(ctx context.Context, o usecase.OrderOutput) error {
	if o.DeliveryEmail == "" {
		return ErrNoRecipient
	}
	body, err := render(confirmationTmpl, o)
	if err != nil {
		return err
	}
	return n.send(ctx, o.DeliveryEmail, confirmationSubject(o), body)
}

// ADMIN_EMAIL未設定なら何もしない
func (n *SMTPNotifier) SendAdminAlert(ctx context.Context, o usecase.OrderOutput) error {
	if n.adminEmail == "" {
		return nil
	}
	body, err := render(adminAlertTmpl, o)
	if err != nil {
		return err
	}
	return n.send(ctx, n.adminEmail, adminAlertSubject(o), body)
}

func (n *SMTPNotifier) send(ctx context.Context, to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	//DialAndSendはcontextを受けないのでタイムアウトはここで切る
	errCh := make(chan error, 1)
	go func() {
		errCh <- n.sender.DialAndSend(m)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
