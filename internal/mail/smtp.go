// Package mail delivers plain-text messages over SMTP.
package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Config describes the SMTP relay.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// Recorder observes delivery outcomes.
type Recorder interface {
	RecordMail(channel string, err error)
}

// Sender delivers messages through an SMTP relay. Every delivery opens its
// own connection bounded by the context deadline and Config.Timeout.
// STARTTLS is used whenever the relay offers it.
type Sender struct {
	cfg      Config
	recorder Recorder
	now      func() time.Time
}

// NewSender validates cfg. recorder may be nil.
func NewSender(cfg Config, recorder Recorder) (*Sender, error) {
	if cfg.Host == "" {
		return nil, errors.New("mail: smtp host is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		return nil, errors.New("mail: from address is required")
	}
	if err := gomail.NewMsg().From(cfg.From); err != nil {
		return nil, fmt.Errorf("mail: from address: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Sender{cfg: cfg, recorder: recorder, now: time.Now}, nil
}

// Send delivers msg.
func (s *Sender) Send(ctx context.Context, msg Message) error {
	err := s.send(ctx, msg)
	if s.recorder != nil {
		s.recorder.RecordMail("smtp", err)
	}
	return err
}

func (s *Sender) send(ctx context.Context, msg Message) error {
	m, err := s.compose(msg)
	if err != nil {
		return err
	}
	client, err := s.client()
	if err != nil {
		return fmt.Errorf("mail: client: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("mail: deliver: %w", err)
	}
	return nil
}

func (s *Sender) client() (*gomail.Client, error) {
	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithTimeout(s.cfg.Timeout),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.Username),
			gomail.WithPassword(s.cfg.Password),
		)
	}
	return gomail.NewClient(s.cfg.Host, opts...)
}

// compose builds the message. Addresses are parsed, so a recipient carrying
// extra header lines is refused; the subject is folded onto one line.
func (s *Sender) compose(msg Message) (*gomail.Msg, error) {
	if msg.To == "" {
		return nil, errors.New("mail: recipient is required")
	}
	m := gomail.NewMsg(gomail.WithEncoding(gomail.NoEncoding))
	if err := m.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("mail: from: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("mail: to: %w", err)
	}
	m.Subject(oneLine.Replace(msg.Subject))
	m.SetDateWithValue(s.now())
	m.SetBodyString(gomail.TypeTextPlain, msg.Body)
	return m, nil
}

var oneLine = strings.NewReplacer("\r", "", "\n", " ")
