package notification

import (
	"bytes"
	"fmt"
	"net/smtp"
	"text/template"
	"time"

	"github.com/smukkama/geofence-server/internal/protocol"
	"github.com/smukkama/geofence-server/pkg/config"
)

// EmailNotifier sends email notifications
type EmailNotifier struct {
	config *config.SMTPConfig
}

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(cfg *config.SMTPConfig) *EmailNotifier {
	return &EmailNotifier{config: cfg}
}

var emailTemplate = template.Must(template.New("geofence").Parse(`
{{.Title}}
{{.Underline}}

{{.Message}}

Device: {{.DeviceID}}
Event: {{.EventType}}
{{- if .HasLocation}}
Location: {{.Latitude}}, {{.Longitude}}
{{- end}}
Time: {{.Timestamp}}

---
Geofence Server Notification System
`))

// Send delivers one email notification
func (e *EmailNotifier) Send(intent *protocol.NotificationIntent) error {
	body, err := e.renderBody(intent)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return e.sendEmail(intent.Title, body, intent.EmailTo)
}

func (e *EmailNotifier) renderBody(intent *protocol.NotificationIntent) (string, error) {
	data := struct {
		Title       string
		Underline   string
		Message     string
		DeviceID    string
		EventType   string
		HasLocation bool
		Latitude    string
		Longitude   string
		Timestamp   string
	}{
		Title:     intent.Title,
		Underline: underline(intent.Title),
		Message:   intent.Message,
		DeviceID:  intent.DeviceID,
		EventType: intent.EventType,
		Timestamp: time.Now().Format(time.RFC1123Z),
	}
	if intent.Latitude != nil && intent.Longitude != nil {
		data.HasLocation = true
		data.Latitude = intent.Latitude.String()
		data.Longitude = intent.Longitude.String()
	}

	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func underline(s string) string {
	u := make([]byte, len(s))
	for i := range u {
		u[i] = '='
	}
	return string(u)
}

func (e *EmailNotifier) sendEmail(subject, body, to string) error {
	// Skip sending if SMTP is not configured
	if e.config.Username == "" || e.config.Password == "" {
		fmt.Printf("SMTP not configured, skipping email:\nSubject: %s\n%s\n", subject, body)
		return nil
	}

	if to == "" {
		to = e.config.To
	}

	message := fmt.Sprintf("From: %s\r\n", e.config.From)
	message += fmt.Sprintf("To: %s\r\n", to)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	message += "\r\n"
	message += body

	auth := smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Host)

	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	err := smtp.SendMail(addr, auth, e.config.From, []string{to}, []byte(message))
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	fmt.Printf("Email sent successfully: %s\n", subject)
	return nil
}

// TestConnection tests the SMTP connection
func (e *EmailNotifier) TestConnection() error {
	if e.config.Username == "" {
		return fmt.Errorf("SMTP not configured")
	}

	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	fmt.Println("SMTP connection test successful")
	return nil
}
