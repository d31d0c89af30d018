package email

import "context"

// Provider delivers one of the embedded templates.
type Provider interface {
	SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error
}

// Discard renders the message and drops it, so a broken template still
// fails in environments without SMTP.
type Discard struct{}

func (Discard) SendTemplate(_ context.Context, _ []string, templateName string, data map[string]any) error {
	_, _, err := Render(templateName, data)
	return err
}
