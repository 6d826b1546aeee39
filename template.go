package stepflow

import (
	"fmt"
	"maps"
	"strings"
	"text/template"
)

// templateText holds the data for a single message template.
type templateText struct {
	role     Role
	template string
	vars     map[string]any
	// name identifies the template in parse errors
	name string
}

// PromptTemplate builds role-tagged messages from text/template sources.
// It supports fluent chaining, for example:
//
//	messages, err := NewPromptTemplate().System(sysTmpl).User(userTmpl, params).Build()
//
// A template referencing a key absent from its params fails to build.
type PromptTemplate struct {
	tmpls []*templateText
}

// NewPromptTemplate creates a new PromptTemplate builder.
func NewPromptTemplate() *PromptTemplate {
	return &PromptTemplate{}
}

// mergeParams combines multiple param maps into one.
func (p *PromptTemplate) mergeParams(params ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, kv := range params {
		if kv == nil {
			continue
		}
		maps.Copy(out, kv)
	}
	return out
}

func (p *PromptTemplate) add(role Role, tmpl string, params ...map[string]any) *PromptTemplate {
	p.tmpls = append(p.tmpls, &templateText{
		role:     role,
		template: tmpl,
		vars:     p.mergeParams(params...),
		name:     fmt.Sprintf("%s-%d", role, len(p.tmpls)),
	})
	return p
}

// System appends a system message rendered from the provided template and params.
func (p *PromptTemplate) System(tmpl string, params ...map[string]any) *PromptTemplate {
	return p.add(RoleSystem, tmpl, params...)
}

// User appends a user message rendered from the provided template and params.
func (p *PromptTemplate) User(tmpl string, params ...map[string]any) *PromptTemplate {
	return p.add(RoleUser, tmpl, params...)
}

// Assistant appends an assistant message rendered from the provided template and params.
func (p *PromptTemplate) Assistant(tmpl string, params ...map[string]any) *PromptTemplate {
	return p.add(RoleAssistant, tmpl, params...)
}

// Build renders every template in order.
func (p *PromptTemplate) Build() ([]*Message, error) {
	messages := make([]*Message, 0, len(p.tmpls))
	for _, tmpl := range p.tmpls {
		var buf strings.Builder
		t, err := template.New(tmpl.name).Option("missingkey=error").Parse(tmpl.template)
		if err != nil {
			return nil, err
		}
		if err := t.Execute(&buf, tmpl.vars); err != nil {
			return nil, err
		}
		switch tmpl.role {
		case RoleUser:
			messages = append(messages, UserMessage(buf.String()))
		case RoleSystem:
			messages = append(messages, SystemMessage(buf.String()))
		case RoleAssistant:
			messages = append(messages, AssistantMessage(buf.String()))
		default:
			return nil, fmt.Errorf("unknown role: %s", tmpl.role)
		}
	}
	return messages, nil
}
