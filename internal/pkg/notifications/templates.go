package notifications

import (
	"bytes"
	"fmt"
	"html/template"
)

// Mail bodies per template name. Kept deliberately plain; styling lives in
// the SMTP layer's wrapper, not here.
var templates = map[string]string{
	"users-trial-end": `<p>Hi {{.firstname}},</p>
<p>Your free trial ends soon. Add a payment method to keep your workspace running.</p>`,

	"users-subscription-updated": `<p>Hi {{.firstname}},</p>
<p>Your subscription was updated. No action is needed.</p>`,

	"users-subscription-canceled": `<p>Hi {{.firstname}},</p>
<p>Your subscription has been cancelled. Your data stays available until the end of the billing period.</p>`,

	"users-charge-success": `<p>Hi {{.firstname}},</p>
<p>Your payment went through. Thanks for staying with us.</p>`,

	"users-charge-failed": `<p>Hi {{.firstname}},</p>
<p>We could not collect your last payment. Please check your payment method.</p>`,

	"users-charge-pending": `<p>Hi {{.firstname}},</p>
<p>Your payment is being processed. We will let you know once it settles.</p>`,

	"users-welcome": `<p>Hi {{.firstname}},</p>
<p>Welcome aboard! Confirm your email address with the link below:</p>
<p><a href="{{.activation_url}}">{{.activation_url}}</a></p>`,

	"users-forgot-password": `<p>Hi {{.firstname}},</p>
<p>Use the link below to pick a new password. The link is valid once:</p>
<p><a href="{{.reset_url}}">{{.reset_url}}</a></p>`,

	"users-email-change": `<p>Hi {{.firstname}},</p>
<p>Confirm your new email address with the link below:</p>
<p><a href="{{.confirm_url}}">{{.confirm_url}}</a></p>`,
}

var parsed = func() map[string]*template.Template {
	out := make(map[string]*template.Template, len(templates))
	for name, body := range templates {
		out[name] = template.Must(template.New(name).Parse(body))
	}
	return out
}()

// Render produces the HTML body for a template name and context.
func Render(templateName string, data map[string]interface{}) (string, error) {
	tmpl, ok := parsed[templateName]
	if !ok {
		return "", fmt.Errorf("unknown mail template %q", templateName)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render mail template %q: %w", templateName, err)
	}
	return buf.String(), nil
}

// HasTemplate reports whether a template name is registered.
func HasTemplate(templateName string) bool {
	_, ok := parsed[templateName]
	return ok
}
