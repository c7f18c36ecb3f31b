package mail

import (
	"fmt"
	"html"
)

// ActivationEmail returns subject and body of the account activation mail.
func ActivationEmail(companyName, recipientName, link string) (string, string) {
	greeting := "Hello"
	if recipientName != "" {
		greeting = "Hello " + html.EscapeString(recipientName)
	}
	subject := fmt.Sprintf("Activate your %s account on TalentFox", headerValue(companyName))
	body := fmt.Sprintf(`<p>%s,</p>
<p>an account was created for you at <strong>%s</strong> on TalentFox.</p>
<p><a href="%s">Set your password and activate your account</a></p>
<p>The link can be used once and expires in 48 hours. If you did not expect this mail you can ignore it.</p>`,
		greeting, html.EscapeString(companyName), html.EscapeString(link))
	return subject, body
}
