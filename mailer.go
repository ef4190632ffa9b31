package main

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

//go:embed templates/invitation_email.html
var emailTemplateFS embed.FS

// Dispatcher errors. The messages are user-facing (the UI shows them
// as-is), hence the French.
var (
	ErrMailerNotConfigured = errors.New("la configuration du service d'email est incomplète sur le serveur")
	ErrNoRecipients        = errors.New("aucune adresse e-mail valide à qui envoyer l'invitation")
	ErrAllSendsFailed      = errors.New("le service d'envoi d'e-mails a rencontré une erreur")
)

type MailerConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	BaseURL  string
}

func MailerConfigFromEnv() MailerConfig {
	port, _ := strconv.Atoi(os.Getenv("SMTP_PORT"))
	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return MailerConfig{
		Host:     os.Getenv("SMTP_HOST"),
		Port:     port,
		Username: os.Getenv("SMTP_USER"),
		Password: os.Getenv("SMTP_PASS"),
		From:     os.Getenv("MAIL_FROM"),
		BaseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// Mailer renders one invitation per neighbor and hands it to SMTP. The
// send function is a field so tests can swap the transport out.
type Mailer struct {
	cfg  MailerConfig
	tmpl *template.Template
	send func(ctx context.Context, msg *mail.Msg) error
}

func NewMailer(cfg MailerConfig) *Mailer {
	m := &Mailer{
		cfg:  cfg,
		tmpl: template.Must(template.ParseFS(emailTemplateFS, "templates/invitation_email.html")),
	}
	m.send = m.smtpSend
	return m
}

func (m *Mailer) configured() bool {
	return m.cfg.Host != "" && m.cfg.Port != 0 && m.cfg.From != ""
}

func (m *Mailer) smtpSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{mail.WithPort(m.cfg.Port)}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, msg)
}

// SendResult reports one recipient's outcome. A neighbor without an email
// address appears with Sent=false and no error: they are skipped, not
// failed, and the caller may still mark them invited.
type SendResult struct {
	NeighborID string `json:"neighborId"`
	Email      string `json:"email,omitempty"`
	Sent       bool   `json:"sent"`
	Error      string `json:"error,omitempty"`
}

// SendInvitations dispatches the party invitation to every neighbor with
// an email address. It succeeds as long as at least one send went
// through; a missing SMTP configuration is reported up front without
// attempting any send.
func (m *Mailer) SendInvitations(ctx context.Context, party Party, neighbors []Neighbor) ([]SendResult, error) {
	if !m.configured() {
		log.Println("⚠️ SMTP configuration incomplete, invitations not sent")
		return nil, ErrMailerNotConfigured
	}

	results := make([]SendResult, 0, len(neighbors))
	sent := 0
	withEmail := 0
	for _, n := range neighbors {
		if n.Email == "" {
			results = append(results, SendResult{NeighborID: n.ID})
			continue
		}
		withEmail++
		if err := m.sendOne(ctx, party, n); err != nil {
			log.Printf("invitation to %s failed: %v", n.Email, err)
			results = append(results, SendResult{NeighborID: n.ID, Email: n.Email, Error: err.Error()})
			continue
		}
		sent++
		results = append(results, SendResult{NeighborID: n.ID, Email: n.Email, Sent: true})
	}

	if withEmail == 0 {
		return results, ErrNoRecipients
	}
	if sent == 0 {
		return results, ErrAllSendsFailed
	}
	return results, nil
}

func (m *Mailer) sendOne(ctx context.Context, party Party, n Neighbor) error {
	body, err := m.renderInvitation(party, n.ID)
	if err != nil {
		return fmt.Errorf("render invitation: %w", err)
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return err
	}
	if err := msg.To(n.Email); err != nil {
		return err
	}
	msg.Subject("Invitation : " + party.Name)
	msg.SetBodyString(mail.TypeTextHTML, body)
	return m.send(ctx, msg)
}

type invitationData struct {
	Party       Party
	DateLabel   string
	MenuLabel   string
	ConfirmLink string
	DeclineLink string
}

func (m *Mailer) renderInvitation(party Party, neighborID string) (string, error) {
	names := make([]string, 0, len(party.Menu))
	for _, item := range party.Menu {
		names = append(names, item.Name)
	}

	data := invitationData{
		Party:     party,
		DateLabel: frenchDate(party.Date),
		MenuLabel: strings.Join(names, ", "),
		ConfirmLink: fmt.Sprintf("%s/rsvp?partyId=%s&neighborId=%s&status=%s",
			m.cfg.BaseURL, party.ID, neighborID, StatusAttending),
		DeclineLink: fmt.Sprintf("%s/rsvp?partyId=%s&neighborId=%s&status=%s",
			m.cfg.BaseURL, party.ID, neighborID, StatusDeclined),
	}

	var buf bytes.Buffer
	if err := m.tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var frenchDays = [...]string{"dimanche", "lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi"}

var frenchMonths = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// frenchDate formats "samedi 14 juillet 2026 à 19h30".
func frenchDate(t time.Time) string {
	return fmt.Sprintf("%s %d %s %d à %dh%02d",
		frenchDays[t.Weekday()], t.Day(), frenchMonths[t.Month()-1], t.Year(), t.Hour(), t.Minute())
}
