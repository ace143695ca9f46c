package contact

import (
	"net/url"
	"strings"
)

// EmailForm is the contact form. It is never sent by the server: the visitor's
// own mail client sends it through the returned mailto link.
type EmailForm struct {
	Name    string `json:"name" validate:"required,max=50"`
	Company string `json:"company" validate:"max=50"`
	Subject string `json:"subject" validate:"required,max=100"`
	Message string `json:"message" validate:"required,max=2000"`
}

// Normalize trims surrounding whitespace from every field.
func (f EmailForm) Normalize() EmailForm {
	return EmailForm{
		Name:    strings.TrimSpace(f.Name),
		Company: strings.TrimSpace(f.Company),
		Subject: strings.TrimSpace(f.Subject),
		Message: strings.TrimSpace(f.Message),
	}
}

// Validate normalizes f and checks required fields and length limits.
func (f EmailForm) Validate() error {
	return validateStruct(f.Normalize())
}

// Body renders the plain-text email body.
func (f EmailForm) Body() string {
	company := f.Company
	if company == "" {
		company = "Not specified"
	}

	var b strings.Builder
	b.WriteString("Name: " + f.Name + "\n")
	b.WriteString("Company: " + company + "\n")
	b.WriteString("Subject: " + f.Subject + "\n\n")
	b.WriteString("Message:\n" + f.Message + "\n\n")
	b.WriteString("---\nSent from MAC DESIGNS Portfolio Contact Form")
	return b.String()
}

// Mailto builds the mailto link addressed to recipient.
func (f EmailForm) Mailto(recipient string) string {
	return "mailto:" + recipient +
		"?subject=" + encodeComponent(f.Subject) +
		"&body=" + encodeComponent(f.Body())
}

// encodeComponent percent-encodes s for a mailto query. Spaces become %20 since
// mail clients do not decode + as a space.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
