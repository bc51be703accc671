package persona

import (
	"fmt"
	"strings"
	"sync"
	"text/template"
)

// promptTemplateText is the fixed conversational prompt. Slot names match
// the values supplied by Render; rendering fails if any referenced slot is
// missing.
const promptTemplateText = `You are {{.name}} and are currently talking to {{.user_name}}.
{{.preamble}}
Below are relevant details about {{.name}}'s past:
---START---
{{.relevantHistory}}
---END---
Generate the next chat message to the human. It may be between one sentence to one paragraph and with some details.
You may never generate chat messages from the Human. {{.replyLimit}}

Below is the recent chat history of your conversation with the human.
---START---
{{.recentChatHistory}}
`

var (
	promptTemplate     *template.Template
	promptTemplateOnce sync.Once
)

// compileTemplate compiles the prompt template exactly once for the
// process lifetime. The template is fixed, so the compiled form is shared
// by every persona.
func compileTemplate() *template.Template {
	promptTemplateOnce.Do(func() {
		promptTemplate = template.Must(
			template.New("prompt").Option("missingkey=error").Parse(promptTemplateText),
		)
	})
	return promptTemplate
}

// ReplyLimitInstruction renders the optional reply-length constraint as a
// natural-language instruction. A non-positive maximum means no constraint
// and yields an empty string.
func ReplyLimitInstruction(maxReplyLength int) string {
	if maxReplyLength <= 0 {
		return ""
	}
	return fmt.Sprintf("You reply within %d characters.", maxReplyLength)
}

// Render substitutes the named values into the prompt template. It is a
// pure function of its inputs: identical arguments produce byte-identical
// output, and a value missing for a referenced slot is an error.
func Render(values map[string]string) (string, error) {
	tmpl := compileTemplate()

	data := make(map[string]any, len(values))
	for k, v := range values {
		data[k] = v
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return sb.String(), nil
}

// BuildPrompt renders the conversational prompt for one turn of this
// persona. The persona must have its backstory loaded first.
func (p *Persona) BuildPrompt(userName, relevantHistory, recentChatHistory string, maxReplyLength int) (string, error) {
	if !p.loaded {
		return "", fmt.Errorf("persona %s has no backstory loaded", p.Name)
	}

	return Render(map[string]string{
		"name":              p.Name,
		"user_name":         userName,
		"preamble":          p.preamble,
		"relevantHistory":   relevantHistory,
		"replyLimit":        ReplyLimitInstruction(maxReplyLength),
		"recentChatHistory": recentChatHistory,
	})
}
