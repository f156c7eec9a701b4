package agents

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"text/template"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var promptFuncs = template.FuncMap{
	"pct": func(rate float64) string { return fmt.Sprintf("%.0f", rate*100) },
	"inc": func(i int) int { return i + 1 },
	"json": func(v any) (string, error) {
		b, err := json.MarshalIndent(v, "", "  ")
		return string(b), err
	},
}

var prompts = template.Must(template.New("prompts").Funcs(promptFuncs).ParseFS(promptFS, "prompts/*.tmpl"))

// render executes the named prompt template, e.g. "risk_user.tmpl".
func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return buf.String(), nil
}

// prompt renders the system and user templates for one agent.
func prompt(agent string, data any) (system, user string, err error) {
	if system, err = render(agent+"_system.tmpl", nil); err != nil {
		return "", "", err
	}
	if user, err = render(agent+"_user.tmpl", data); err != nil {
		return "", "", err
	}
	return system, user, nil
}
