package mailer

import (
	"sync"
)

// Email is a message the MockMailer accepted, already rendered.
type Email struct {
	Recipient    string
	TemplateFile string
	Subject      string
	Data         any
}

// MockMailer renders every message like the SMTP mailer does but keeps it in
// memory. Set Err to make deliveries fail.
type MockMailer struct {
	mu     sync.RWMutex
	emails []Email

	Err error
}

func NewMockMailer() *MockMailer {
	return &MockMailer{
		emails: make([]Email, 0),
	}
}

func (m *MockMailer) Send(recipient, templateFile string, data any) error {
	subject, _, _, err := render(templateFile, data)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}

	m.emails = append(m.emails, Email{
		Recipient:    recipient,
		TemplateFile: templateFile,
		Subject:      subject,
		Data:         data,
	})

	return nil
}

// GetSentEmails returns a copy of the delivered emails in send order.
func (m *MockMailer) GetSentEmails() []Email {
	m.mu.RLock()
	defer m.mu.RUnlock()

	emails := make([]Email, len(m.emails))
	copy(emails, m.emails)
	return emails
}

func (m *MockMailer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.emails = make([]Email, 0)
	m.Err = nil
}
