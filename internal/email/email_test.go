package email

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type captureSender struct {
	to, subject, html, text string
	calls                   int
}

func (c *captureSender) Send(_ context.Context, to, subject, html, text string) error {
	c.calls++
	c.to, c.subject, c.html, c.text = to, subject, html, text
	return nil
}

func TestMailNotifier_NotifyReconnect(t *testing.T) {
	s := &captureSender{}
	n := NewMailNotifier(s, "https://app.example.com")

	err := n.NotifyReconnect(context.Background(), ReconnectNotice{
		TenantID:         "t1",
		OrganizationName: "Acme <AB>",
		Email:            "a@b.se",
	})
	require.NoError(t, err)
	require.Equal(t, 1, s.calls)
	require.Equal(t, "a@b.se", s.to)
	require.Equal(t, reconnectSubject, s.subject)
	require.Contains(t, s.text, "https://app.example.com/settings/integrations")
	require.Contains(t, s.html, "Acme &lt;AB&gt;")
}

func TestMailNotifier_NoEmail(t *testing.T) {
	s := &captureSender{}
	err := NewMailNotifier(s, "https://x").NotifyReconnect(context.Background(), ReconnectNotice{TenantID: "t1"})
	require.Error(t, err)
	require.Zero(t, s.calls)
}

func TestLogNotifier(t *testing.T) {
	require.NoError(t, LogNotifier{}.NotifyReconnect(context.Background(), ReconnectNotice{TenantID: "t1"}))
}
