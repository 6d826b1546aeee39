package stepflow

import "testing"

func TestTemplateMessage(t *testing.T) {
	tmpl := "Hello, {{.Name}}! Welcome to {{.Place}}."
	data := map[string]any{
		"Name":  "Alice",
		"Place": "Wonderland",
	}

	expected := "Hello, Alice! Welcome to Wonderland."
	result, err := NewPromptTemplate().System(tmpl, data).Build()
	if err != nil {
		t.Fatalf("TemplateMessage returned an error: %v", err)
	}
	if len(result) != 1 || result[0].Text != expected || result[0].Role != RoleSystem {
		t.Errorf("TemplateMessage = %+v; want %q", result, expected)
	}
}

func TestTemplateMessageOrder(t *testing.T) {
	result, err := NewPromptTemplate().
		System("You are a forecaster.").
		User("Forecast for {{.location}}", map[string]any{"location": "Scotland"}).
		Build()
	if err != nil {
		t.Fatalf("TemplateMessage returned an error: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(result))
	}
	if result[0].Role != RoleSystem || result[1].Role != RoleUser {
		t.Errorf("unexpected roles %s, %s", result[0].Role, result[1].Role)
	}
	if result[1].Text != "Forecast for Scotland" {
		t.Errorf("unexpected user text %q", result[1].Text)
	}
}

func TestTemplateMessageMissingKey(t *testing.T) {
	_, err := NewPromptTemplate().User("Hello {{.name}}").Build()
	if err == nil {
		t.Fatalf("expected error for missing template key")
	}
}
