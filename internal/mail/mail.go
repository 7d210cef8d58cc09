// Package mail sends admin notifications.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

type Message struct {
	To      []string
	Subject string
	Text    string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Log writes messages to the logger instead of sending them.
type Log struct {
	log *slog.Logger
}

func NewLog(log *slog.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) Send(_ context.Context, msg Message) error {
	l.log.Info("email", "to", strings.Join(msg.To, ","), "subject", msg.Subject, "body", msg.Text)
	return nil
}

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// Sendgrid delivers messages through the SendGrid v3 API.
type Sendgrid struct {
	key        string
	host       string
	from       *sgmail.Email
	subjPrefix string
}

func NewSendgrid(key, appName, fromEmail string) *Sendgrid {
	return &Sendgrid{
		key:        key,
		host:       sendgridHost,
		from:       sgmail.NewEmail(appName, fromEmail),
		subjPrefix: "[" + appName + "] ",
	}
}

func (s *Sendgrid) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = s.subjPrefix + msg.Subject
	for _, to := range msg.To {
		p.AddTos(sgmail.NewEmail("", to))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	if msg.HTML != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	return m
}

func (s *Sendgrid) Send(_ context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return nil
	}
	req := sendgrid.GetRequest(s.key, sendgridEndpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}
