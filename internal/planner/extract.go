package planner

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var legacyTagPattern = regexp.MustCompile(`(?s)<xdotool>(.*?)</xdotool>`)

// Commands recovers the ordered command list from raw planner output.
// Markdown fences are stripped, then a JSON plan is parsed (with a repair
// pass for near-JSON model output); if that fails, legacy
// <xdotool>...</xdotool> segments are collected in document order. An
// unusable input yields an empty list, never an error.
func Commands(raw string) []string {
	if plan, ok := parsePlan(raw); ok && plan.commands != nil {
		return plan.commands
	}

	var commands []string
	for _, m := range legacyTagPattern.FindAllStringSubmatch(raw, -1) {
		if cmd := strings.TrimSpace(m[1]); cmd != "" {
			commands = append(commands, cmd)
		}
	}
	return commands
}

// Description recovers the plan's human-readable action description, or ""
// when the output carries none.
func Description(raw string) string {
	if plan, ok := parsePlan(raw); ok {
		return plan.action
	}
	return ""
}

type parsedPlan struct {
	action   string
	commands []string
}

func parsePlan(raw string) (parsedPlan, bool) {
	clean := stripFences(raw)

	if plan, ok := decodePlan(clean); ok {
		return plan, true
	}

	// Models frequently emit almost-JSON (trailing commas, single quotes,
	// chatter around the object). Try a repair pass before giving up.
	repaired, err := jsonrepair.JSONRepair(clean)
	if err != nil {
		return parsedPlan{}, false
	}
	return decodePlan(repaired)
}

func decodePlan(s string) (parsedPlan, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return parsedPlan{}, false
	}

	plan := parsedPlan{}
	if rawAction, ok := obj["action"]; ok {
		var action string
		if err := json.Unmarshal(rawAction, &action); err == nil {
			plan.action = action
		}
	}

	rawCommands, ok := obj["commands"]
	if !ok {
		return plan, false
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(rawCommands, &elems); err != nil {
		return plan, false
	}

	// Elements are passed through without shape validation; non-string
	// entries survive as their JSON text and the dispatcher reports them
	// as failed commands.
	plan.commands = make([]string, 0, len(elems))
	for _, elem := range elems {
		var cmd string
		if err := json.Unmarshal(elem, &cmd); err == nil {
			plan.commands = append(plan.commands, cmd)
		} else {
			plan.commands = append(plan.commands, string(elem))
		}
	}
	return plan, true
}

// stripFences removes markdown code-fence markers, with or without a
// language tag, when the output is fenced.
func stripFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(trimmed, "```json"):
		trimmed = strings.ReplaceAll(trimmed, "```json", "")
		trimmed = strings.ReplaceAll(trimmed, "```", "")
	case strings.HasPrefix(trimmed, "```"):
		trimmed = strings.ReplaceAll(trimmed, "```", "")
	}
	return strings.TrimSpace(trimmed)
}
