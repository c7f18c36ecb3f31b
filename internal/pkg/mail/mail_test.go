package mail

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage(t *testing.T) {
	msg := string(BuildMessage("no-reply@talentfox.io", "boss@acme.test", "Hi", "<p>x</p>"))

	assert.True(t, strings.HasPrefix(msg, "From: no-reply@talentfox.io\r\nTo: boss@acme.test\r\nSubject: Hi\r\n"))
	assert.Contains(t, msg, "Content-Type: text/html; charset=UTF-8\r\n\r\n<p>x</p>")
}

func TestBuildMessageKeepsHeadersOnOneLine(t *testing.T) {
	subject, _ := ActivationEmail("Acme\r\nBcc: victim@example.com", "", "https://acme.talentfox.io/activate")
	msg := string(BuildMessage("no-reply@talentfox.io", "boss@acme.test\r\nCc: x@example.com", subject, "<p>x</p>"))

	headers, _, found := strings.Cut(msg, "\r\n\r\n")
	require.True(t, found)
	for _, line := range strings.Split(headers, "\r\n") {
		assert.False(t, strings.HasPrefix(line, "Bcc:"), line)
		assert.False(t, strings.HasPrefix(line, "Cc:"), line)
	}
	assert.NotContains(t, headers, "\n\n")
	assert.Contains(t, headers, "Subject: Activate your Acme Bcc: victim@example.com account on TalentFox\r\n")
}

func TestBuildMessageEncodesSubject(t *testing.T) {
	msg := string(BuildMessage("no-reply@talentfox.io", "boss@acme.test", "Aktivieren: Müller GmbH", "<p>x</p>"))

	assert.Contains(t, msg, "Subject: =?utf-8?q?Aktivieren:_M=C3=BCller_GmbH?=\r\n")
}

func TestActivationEmailEscapes(t *testing.T) {
	subject, body := ActivationEmail("Acme <Corp>", "Jane", "https://acme.talentfox.io/activate?token=abc&x=1")

	assert.Equal(t, "Activate your Acme <Corp> account on TalentFox", subject)
	assert.Contains(t, body, "Acme &lt;Corp&gt;")
	assert.Contains(t, body, "token=abc&amp;x=1")
	assert.Contains(t, body, "Hello Jane")
}

func TestLogMailer(t *testing.T) {
	assert.NoError(t, LogMailer{}.Send(context.Background(), "a@b.test", "s", "b"))
}
