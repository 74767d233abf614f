package notify

import (
	"context"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	"text/template"
	"time"

	"intake/internal/analytics"
	"intake/internal/config"
	"intake/internal/model"

	"github.com/wneessen/go-mail"
)

// Sender sends composed messages. *mail.Client satisfies it.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// NewSMTPClient builds a go-mail client from cfg.
func NewSMTPClient(cfg config.SMTPConfig) (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}
	return client, nil
}

type emailTemplate struct {
	subject string
	text    *template.Template
	html    *htmltemplate.Template
}

func newEmailTemplate(subject, text, html string) emailTemplate {
	return emailTemplate{
		subject: subject,
		text:    template.Must(template.New(subject).Parse(text)),
		html:    htmltemplate.Must(htmltemplate.New(subject).Parse(html)),
	}
}

var (
	approvedEmail = newEmailTemplate("Candidature approuvée",
		"Bonjour {{.App.ContactName}},\n\nVotre candidature {{.App.ID}} a été approuvée.\n{{.SiteURL}}\n",
		"<p>Bonjour {{.App.ContactName}},</p><p>Votre candidature {{.App.ID}} a été approuvée.</p><p><a href=\"{{.SiteURL}}\">{{.SiteURL}}</a></p>")
	rejectedEmail = newEmailTemplate("Mise à jour de votre candidature",
		"Bonjour {{.App.ContactName}},\n\nVotre candidature {{.App.ID}} n'a pas été retenue.\n{{with .App.RejectionReason}}Motif : {{.}}\n{{end}}",
		"<p>Bonjour {{.App.ContactName}},</p><p>Votre candidature {{.App.ID}} n'a pas été retenue.</p>{{with .App.RejectionReason}}<p>Motif : {{.}}</p>{{end}}")
	receivedEmail = newEmailTemplate("Candidature reçue",
		"Bonjour {{.App.ContactName}},\n\nNous avons bien reçu votre candidature. Référence : {{.App.ID}}\n",
		"<p>Bonjour {{.App.ContactName}},</p><p>Nous avons bien reçu votre candidature. Référence : <strong>{{.App.ID}}</strong></p>")
	adminApplicationEmail = newEmailTemplate("Nouvelle candidature partenaire",
		"Type : {{.App.PartnerType}}\nContact : {{.App.ContactName}} <{{.App.Email}}>\nRéférence : {{.App.ID}}\n",
		"<p>Type : {{.App.PartnerType}}</p><p>Contact : {{.App.ContactName}} &lt;{{.App.Email}}&gt;</p><p>Référence : {{.App.ID}}</p>")
	contactEmail = newEmailTemplate("Nous avons bien reçu votre message",
		"Bonjour {{.Msg.Name}},\n\nMerci pour votre message. Nous vous répondrons sous 24-48 heures.\n",
		"<p>Bonjour {{.Msg.Name}},</p><p>Merci pour votre message. Nous vous répondrons sous 24-48 heures.</p>")
	adminContactEmail = newEmailTemplate("Nouveau message de contact",
		"De : {{.Msg.Name}} <{{.Msg.Email}}>\nSujet : {{.Msg.Subject}}\n\n{{.Msg.Message}}\n",
		"<p>De : {{.Msg.Name}} &lt;{{.Msg.Email}}&gt;</p><p>Sujet : {{.Msg.Subject}}</p><p>{{.Msg.Message}}</p>")
	dailyReportEmail = newEmailTemplate("EatFast Daily Report",
		"Rapport quotidien EatFast - {{.ReportDay}}\n\n"+
			"NOUVEAUX HIER:\n- Messages de contact: {{.Report.NewContacts}}\n- Candidatures partenaires: {{.Report.NewApplications}}\n\n"+
			"EN ATTENTE:\n- Messages de contact: {{.Report.PendingContacts}}\n- Candidatures partenaires: {{.Report.PendingApplications}}\n\n"+
			"Tableau de bord: {{.SiteURL}}/admin/\n",
		"<h2>Rapport quotidien EatFast - {{.ReportDay}}</h2>"+
			"<h3>Nouveaux hier</h3><ul><li>Messages de contact : {{.Report.NewContacts}}</li><li>Candidatures partenaires : {{.Report.NewApplications}}</li></ul>"+
			"<h3>En attente</h3><ul><li>Messages de contact : {{.Report.PendingContacts}}</li><li>Candidatures partenaires : {{.Report.PendingApplications}}</li></ul>"+
			"<p><a href=\"{{.SiteURL}}/admin/\">Tableau de bord</a></p>")
)

type emailData struct {
	App       *model.PartnerApplication
	Msg       *model.ContactMessage
	Report    *analytics.DailyReport
	ReportDay string
	SiteURL   string
}

// EmailNotifier sends applicant and administrator emails over SMTP.
type EmailNotifier struct {
	sender  Sender
	from    string
	admins  []string
	siteURL string
	logger  *slog.Logger
}

// NewEmailNotifier creates an EmailNotifier. admins receive copies of new
// submissions; when empty only applicants are emailed.
func NewEmailNotifier(sender Sender, cfg config.SMTPConfig, admins []string, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		sender:  sender,
		from:    cfg.From,
		admins:  admins,
		siteURL: cfg.SiteURL,
		logger:  logger.With("component", "email"),
	}
}

func (n *EmailNotifier) compose(tpl emailTemplate, data emailData, to ...string) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(n.from); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := m.To(to...); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	m.Subject(tpl.subject)
	if err := m.SetBodyTextTemplate(tpl.text, data); err != nil {
		return nil, fmt.Errorf("failed to render %q: %w", tpl.subject, err)
	}
	if err := m.AddAlternativeHTMLTemplate(tpl.html, data); err != nil {
		return nil, fmt.Errorf("failed to render %q: %w", tpl.subject, err)
	}
	return m, nil
}

func (n *EmailNotifier) send(ctx context.Context, msgs ...*mail.Msg) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := n.sender.DialAndSendWithContext(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// ApplicationReceived confirms receipt to the applicant and alerts administrators.
func (n *EmailNotifier) ApplicationReceived(ctx context.Context, app *model.PartnerApplication) error {
	data := emailData{App: app, SiteURL: n.siteURL}
	applicant, err := n.compose(receivedEmail, data, app.Email)
	if err != nil {
		return err
	}
	msgs := []*mail.Msg{applicant}
	if len(n.admins) > 0 {
		admin, err := n.compose(adminApplicationEmail, data, n.admins...)
		if err != nil {
			return err
		}
		msgs = append(msgs, admin)
	}
	return n.send(ctx, msgs...)
}

// NotifyStatusChange emails the applicant on approval or rejection. Other
// transitions are not emailed.
func (n *EmailNotifier) NotifyStatusChange(ctx context.Context, app *model.PartnerApplication, from, to model.ApplicationStatus) error {
	var tpl emailTemplate
	switch to {
	case model.ApplicationStatusApproved:
		tpl = approvedEmail
	case model.ApplicationStatusRejected:
		tpl = rejectedEmail
	default:
		return nil
	}
	m, err := n.compose(tpl, emailData{App: app, SiteURL: n.siteURL}, app.Email)
	if err != nil {
		return err
	}
	n.logger.Debug("Sending status email", "id", app.ID, "from", from, "to", to)
	return n.send(ctx, m)
}

// ContactReceived acknowledges a contact message and alerts administrators.
func (n *EmailNotifier) ContactReceived(ctx context.Context, msg *model.ContactMessage) error {
	data := emailData{Msg: msg, SiteURL: n.siteURL}
	ack, err := n.compose(contactEmail, data, msg.Email)
	if err != nil {
		return err
	}
	msgs := []*mail.Msg{ack}
	if len(n.admins) > 0 {
		admin, err := n.compose(adminContactEmail, data, n.admins...)
		if err != nil {
			return err
		}
		msgs = append(msgs, admin)
	}
	return n.send(ctx, msgs...)
}

// SendDailyReport emails the digest for report.Date to the administrators.
// Nothing is sent when no administrator address is configured.
func (n *EmailNotifier) SendDailyReport(ctx context.Context, report *analytics.DailyReport) error {
	if len(n.admins) == 0 {
		n.logger.Debug("No administrator address, daily report not sent", "date", report.Date)
		return nil
	}
	day, err := time.Parse(model.DateLayout, report.Date)
	if err != nil {
		return fmt.Errorf("invalid report date %q: %w", report.Date, err)
	}
	m, err := n.compose(dailyReportEmail, emailData{
		Report:    report,
		ReportDay: day.Format("02/01/2006"),
		SiteURL:   n.siteURL,
	}, n.admins...)
	if err != nil {
		return err
	}
	m.Subject(dailyReportEmail.subject + " - " + report.Date)
	if err := n.send(ctx, m); err != nil {
		return err
	}
	n.logger.Info("Daily report sent", "date", report.Date, "recipients", len(n.admins))
	return nil
}
