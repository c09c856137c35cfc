package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	texttpl "text/template"

	"github.com/dropDatabas3/tenantgate/internal/observability/logger"
)

// ReconnectVars son las variables del aviso de reconexión.
type ReconnectVars struct {
	OrganizationName string
	Link             string
}

// ReconnectNotice describe a quién avisar.
type ReconnectNotice struct {
	TenantID         string
	OrganizationName string
	Email            string
}

const reconnectSubject = "Your accounting integration needs to be reconnected"

var reconnectHTML = template.Must(template.New("reconnect_html").Parse(`<p>Hi {{.OrganizationName}},</p>
<p>The connection to your accounting system has expired and was disconnected.</p>
<p><a href="{{.Link}}">Reconnect the integration</a> to keep your data in sync.</p>
`))

var reconnectTXT = texttpl.Must(texttpl.New("reconnect_txt").Parse(`Hi {{.OrganizationName}},

The connection to your accounting system has expired and was disconnected.
Reconnect the integration to keep your data in sync: {{.Link}}
`))

// RenderReconnect renderiza ambas versiones del aviso.
func RenderReconnect(v ReconnectVars) (html, text string, err error) {
	var hb, tb bytes.Buffer
	if err := reconnectHTML.Execute(&hb, v); err != nil {
		return "", "", fmt.Errorf("render reconnect html: %w", err)
	}
	if err := reconnectTXT.Execute(&tb, v); err != nil {
		return "", "", fmt.Errorf("render reconnect txt: %w", err)
	}
	return hb.String(), tb.String(), nil
}

// MailNotifier envía el aviso de reconexión por email.
type MailNotifier struct {
	sender Sender
	// siteURL base del frontend; el link apunta a la pantalla de integraciones.
	siteURL string
}

func NewMailNotifier(sender Sender, siteURL string) *MailNotifier {
	return &MailNotifier{sender: sender, siteURL: siteURL}
}

func (n *MailNotifier) NotifyReconnect(ctx context.Context, notice ReconnectNotice) error {
	if notice.Email == "" {
		return fmt.Errorf("reconnect notice: tenant %s has no email", notice.TenantID)
	}
	html, text, err := RenderReconnect(ReconnectVars{
		OrganizationName: notice.OrganizationName,
		Link:             n.siteURL + "/settings/integrations",
	})
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, notice.Email, reconnectSubject, html, text)
}

// LogNotifier deja el aviso en el log cuando no hay SMTP.
type LogNotifier struct{}

func (LogNotifier) NotifyReconnect(ctx context.Context, notice ReconnectNotice) error {
	logger.From(ctx).Warn("accounting reconnect required",
		logger.Component("email"),
		logger.TenantID(notice.TenantID),
		logger.Email(notice.Email),
	)
	return nil
}
