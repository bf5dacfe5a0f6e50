package notification

import (
	"fmt"
	"strings"
	"sync"
)

// Template is the title and message of a notification with {{key}}
// placeholders.
type Template struct {
	ID      string
	Type    string
	Title   string
	Message string
}

const (
	TemplateAppointmentReminder = "appointment-reminder"
	TemplateVirtualReminder     = "virtual-appointment-reminder"
)

// Templates holds the notification templates by id.
type Templates struct {
	mu        sync.RWMutex
	templates map[string]Template
}

func NewTemplates() *Templates {
	t := &Templates{templates: make(map[string]Template)}
	for _, tpl := range []Template{
		{
			ID:      TemplateAppointmentReminder,
			Type:    TypeAppointmentReminder,
			Title:   "Appointment reminder",
			Message: "Dear {{patient_name}}, this is a reminder of your appointment on {{date}} at {{time}} with {{doctor_name}}.",
		},
		{
			ID:      TemplateVirtualReminder,
			Type:    TypeAppointmentReminder,
			Title:   "Virtual appointment reminder",
			Message: "Dear {{patient_name}}, your virtual appointment with {{doctor_name}} starts on {{date}} at {{time}}. Join at {{meeting_link}}.",
		},
	} {
		t.templates[tpl.ID] = tpl
	}
	return t
}

// Register adds or replaces a template.
func (t *Templates) Register(tpl Template) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.templates[tpl.ID] = tpl
}

// Render fills the placeholders of template id from data. Placeholders
// without a value are left as they are.
func (t *Templates) Render(id string, data map[string]string) (Template, error) {
	t.mu.RLock()
	tpl, ok := t.templates[id]
	t.mu.RUnlock()
	if !ok {
		return Template{}, fmt.Errorf("template %q not found", id)
	}
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		tpl.Title = strings.ReplaceAll(tpl.Title, placeholder, v)
		tpl.Message = strings.ReplaceAll(tpl.Message, placeholder, v)
	}
	return tpl, nil
}
