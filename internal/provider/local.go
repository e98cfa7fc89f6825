package provider

import "strings"

// renderPrompt flattens a request into a plain transcript for runtimes that
// take a single prompt string.
func renderPrompt(req Request) string {
	var sb strings.Builder
	if req.System != "" {
		sb.WriteString("System: ")
		sb.WriteString(req.System)
		sb.WriteString("\n\n")
	}
	for _, t := range req.History {
		if t.Role == RoleAssistant {
			sb.WriteString("Assistant: ")
		} else {
			sb.WriteString("User: ")
		}
		sb.WriteString(t.Content)
		sb.WriteString("\n")
	}
	sb.WriteString("User: ")
	sb.WriteString(req.Input)
	sb.WriteString("\nAssistant:")
	return sb.String()
}
