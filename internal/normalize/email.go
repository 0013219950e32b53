package normalize

import (
	"encoding/json"
	"fmt"
)

// Email is the sidecar payload deposited next to a submission's
// attachments: the subject and body of the message that delivered them.
type Email struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ParseEmail decodes an .email.json sidecar object.
func ParseEmail(data []byte) (Email, error) {
	var email Email
	if err := json.Unmarshal(data, &email); err != nil {
		return Email{}, fmt.Errorf("normalize: parse email sidecar: %w", err)
	}
	return email, nil
}

// Combined renders the email the way the classifier consumes it.
func (e Email) Combined() string {
	return fmt.Sprintf("Subject: %s\n\nBody:\n%s", e.Subject, e.Body)
}
