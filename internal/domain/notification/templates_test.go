package notification

import "testing"

func TestTemplates_RegisterAndRender(t *testing.T) {
	tpls := NewTemplates()
	tpls.Register(Template{
		ID:      "test-tpl",
		Type:    TypeGeneral,
		Title:   "Hello {{name}}",
		Message: "Dear {{name}}, your code is {{code}}.",
	})

	got, err := tpls.Render("test-tpl", map[string]string{"name": "Alice", "code": "1234"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != "Hello Alice" {
		t.Errorf("title = %q, want %q", got.Title, "Hello Alice")
	}
	if got.Message != "Dear Alice, your code is 1234." {
		t.Errorf("message = %q", got.Message)
	}
}

func TestTemplates_RenderMissing(t *testing.T) {
	if _, err := NewTemplates().Render("nonexistent", nil); err == nil {
		t.Fatal("expected error for missing template, got nil")
	}
}

func TestTemplates_BuiltIn(t *testing.T) {
	tpls := NewTemplates()
	for _, id := range []string{TemplateAppointmentReminder, TemplateVirtualReminder} {
		got, err := tpls.Render(id, nil)
		if err != nil {
			t.Errorf("built-in template %q: %v", id, err)
			continue
		}
		if got.Type != TypeAppointmentReminder {
			t.Errorf("template %q has type %q", id, got.Type)
		}
	}
}

func TestTemplates_RenderMissingKeyLeftAsIs(t *testing.T) {
	got, err := NewTemplates().Render(TemplateAppointmentReminder, map[string]string{"patient_name": "Bob"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Dear Bob, this is a reminder of your appointment on {{date}} at {{time}} with {{doctor_name}}."
	if got.Message != want {
		t.Errorf("message = %q, want %q", got.Message, want)
	}
}
