// Package quickreply suggests follow-up prompts from the latest assistant
// text. The heuristics are best effort and never fail.
package quickreply

import (
	"regexp"
	"strings"

	"chefmate/internal/models"
)

// MaxSuggestions caps the number of suggestions returned.
const MaxSuggestions = 3

// Fallback suggestions for recipe-detail responses.
const (
	NutritionForThisRecipe = "Show nutrition facts for this recipe"
	FindAnotherRecipe      = "Find another recipe"
)

var (
	ingredientsMarker  = regexp.MustCompile(`(?i)ingredients:`)
	instructionsMarker = regexp.MustCompile(`(?i)instructions:`)
	introSentence      = regexp.MustCompile(`(?i)for the (.*?)(\.|$|:)`)
	numberedListItem   = regexp.MustCompile(`(?m)^\s*\d+\.\s+(.*)`)
	nameNoise          = strings.NewReplacer(`"`, "", "*", "")
)

// Infer derives at most MaxSuggestions follow-up prompts from text.
func Infer(text string) []string {
	var suggestions []string

	if ingredientsMarker.MatchString(text) && instructionsMarker.MatchString(text) {
		if title := detailTitle(text); title != "" {
			suggestions = append(suggestions, "Show nutrition facts for "+cleanName(title))
		} else {
			suggestions = append(suggestions, NutritionForThisRecipe)
		}
		suggestions = append(suggestions, FindAnotherRecipe)
	} else {
		for _, match := range numberedListItem.FindAllStringSubmatch(text, -1) {
			suggestions = append(suggestions, "Show ingredients for "+cleanName(match[1]))
		}
	}

	if len(suggestions) > MaxSuggestions {
		suggestions = suggestions[:MaxSuggestions]
	}
	if suggestions == nil {
		return []string{}
	}
	return suggestions
}

// ForConversation returns suggestions for the latest message, or none while
// generating or when the latest message is not from the assistant.
func ForConversation(messages []models.Message, generating bool) []string {
	if generating || len(messages) == 0 {
		return []string{}
	}
	last := messages[len(messages)-1]
	if last.Role != models.RoleAssistant {
		return []string{}
	}
	return Infer(last.Text())
}

func detailTitle(text string) string {
	firstLine, _, _ := strings.Cut(text, "\n")
	firstLine = strings.TrimSpace(firstLine)

	if match := introSentence.FindStringSubmatch(firstLine); match != nil && match[1] != "" {
		return match[1]
	}
	if !ingredientsMarker.MatchString(firstLine) {
		return firstLine
	}
	return ""
}

func cleanName(name string) string {
	return nameNoise.Replace(strings.TrimSpace(name))
}
