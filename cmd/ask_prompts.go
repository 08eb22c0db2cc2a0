package cmd

import (
	"strings"
)

// buildAskSystemPrompt tells the model to carry placeholders through
// unchanged so that they can be restored in its reply.
func buildAskSystemPrompt(placeholders []string) string {
	var sb strings.Builder

	sb.WriteString(`You are a helpful assistant. Some personal details in the user's
message have been replaced with placeholders of the form <<LABEL_N>>,
for example <<EMAIL_1>> or <<NAME_2>>.

Guidelines:
- Treat each placeholder as the value it stands for
- When you refer to one, copy the placeholder exactly, including the angle brackets
- Never guess, invent, or ask for the hidden values
- Do not create new placeholders`)

	if len(placeholders) > 0 {
		sb.WriteString("\n\nPlaceholders in this conversation: ")
		sb.WriteString(strings.Join(placeholders, ", "))
	}

	return sb.String()
}
