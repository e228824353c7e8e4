package ai

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/abricot-app/abricot/internal/types"
)

// ProjectContext is the project information given to the model.
type ProjectContext struct {
	Name        string
	Description string
}

// BuildPrompt wraps the user's request in the generation instruction.
func BuildPrompt(project ProjectContext, request string) string {
	var sb strings.Builder

	sb.WriteString("You are an assistant that writes tasks for a project management tool.\n")
	fmt.Fprintf(&sb, "Project: %s\n", strings.TrimSpace(project.Name))
	if desc := strings.TrimSpace(project.Description); desc != "" {
		fmt.Fprintf(&sb, "Project description: %s\n", desc)
	}
	sb.WriteString("\nWrite exactly one task for the following request:\n")
	sb.WriteString(strings.TrimSpace(request))
	sb.WriteString("\n\nRules:\n")
	fmt.Fprintf(&sb, "- The first line is the task title, at most %d characters.\n", types.MaxAITitleLength)
	sb.WriteString("- The remaining lines are the task description.\n")
	sb.WriteString("- Plain text only: no markdown, no bullet or heading markers, no bold or italics.\n")
	sb.WriteString("- Do not write labels such as \"Title:\" or \"Description:\".\n")
	sb.WriteString("- Answer in the language of the request.\n")

	return sb.String()
}

var labelPrefixes = []string{"title:", "titre:", "description:"}

// ParseCompletion splits raw model output into a title (first line, at most
// 80 characters) and a description (the remaining lines). When there are no
// remaining lines the description is the full text.
func ParseCompletion(raw string) (title, description string, err error) {
	text := strings.TrimSpace(strings.ReplaceAll(raw, "\r\n", "\n"))
	if text == "" {
		return "", "", ErrEmptyCompletion
	}

	first, rest, _ := strings.Cut(text, "\n")

	title = truncate(cleanLine(first), types.MaxAITitleLength)
	if title == "" {
		return "", "", ErrEmptyCompletion
	}

	description = strings.TrimSpace(rest)
	description = strings.TrimSpace(stripLabel(description))
	if description == "" {
		description = text
	}

	return title, description, nil
}

// cleanLine removes stray markdown markers and labels the model was told not to emit.
func cleanLine(line string) string {
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "#*-> ")
	line = strings.TrimRight(line, "* ")
	return strings.TrimSpace(stripLabel(line))
}

func stripLabel(s string) string {
	lower := strings.ToLower(s)
	for _, prefix := range labelPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return s[len(prefix):]
		}
	}
	return s
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:max]))
}
