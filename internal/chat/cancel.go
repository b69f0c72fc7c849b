package chat

import (
	"encoding/json"

	"chefmate/internal/models"
	"chefmate/internal/tools"
)

// CancelPendingToolCalls rewrites every invocation of the latest assistant
// message that is still in the call state into a cancelled result. Parts and
// the flat invocation list are both rewritten. Other messages and resolved
// invocations are left untouched. The input slice is not modified.
func CancelPendingToolCalls(messages []models.Message) ([]models.Message, int) {
	out := append([]models.Message(nil), messages...)

	idx := -1
	for i := len(out) - 1; i >= 0; i-- {
		if out[i].Role == models.RoleAssistant {
			idx = i
			break
		}
	}
	if idx < 0 {
		return out, 0
	}

	msg := out[idx].Clone()
	cancelled := 0

	for i, part := range msg.Parts {
		invocationPart, ok := part.(models.ToolInvocationPart)
		if !ok {
			continue
		}
		if rewritten, changed := cancelPending(invocationPart.Invocation); changed {
			msg.Parts[i] = models.ToolInvocationPart{Invocation: rewritten}
			cancelled++
		}
	}

	for i, inv := range msg.ToolInvocations {
		if rewritten, changed := cancelPending(inv); changed {
			msg.ToolInvocations[i] = rewritten
			if len(msg.Parts) == 0 {
				cancelled++
			}
		}
	}

	out[idx] = msg
	return out, cancelled
}

func cancelPending(inv models.ToolInvocation) (models.ToolInvocation, bool) {
	switch call := inv.(type) {
	case models.PendingCall:
		return call.Cancel(), true
	case models.PartialCall, models.ResolvedCall:
		return inv, false
	default:
		return inv, false
	}
}

// SurfacedRecipeIDs collects the recipe ids returned by earlier findRecipes
// results in the conversation.
func SurfacedRecipeIDs(messages []models.Message) []int64 {
	var ids []int64
	collect := func(inv models.ToolInvocation) {
		resolved, ok := inv.(models.ResolvedCall)
		if !ok || resolved.Cancelled || resolved.ToolName != tools.FindRecipes {
			return
		}
		var summaries []tools.RecipeSummary
		if err := json.Unmarshal(resolved.Result, &summaries); err != nil {
			return
		}
		for _, summary := range summaries {
			ids = append(ids, summary.ID)
		}
	}

	for _, msg := range messages {
		if msg.Role != models.RoleAssistant {
			continue
		}
		for _, part := range msg.Parts {
			if invocationPart, ok := part.(models.ToolInvocationPart); ok {
				collect(invocationPart.Invocation)
			}
		}
		for _, inv := range msg.ToolInvocations {
			collect(inv)
		}
	}
	return ids
}
