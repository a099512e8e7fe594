package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ashureev/deskagent/internal/domain"
)

// Fallback is the deterministic planner used when the generative backend is
// unavailable. It matches a fixed catalog of intents against the lowercased
// input and always produces a serialized plan; identical input yields
// identical output.
type Fallback struct{}

// NewFallback creates the deterministic planner.
func NewFallback() *Fallback {
	return &Fallback{}
}

// Generate implements Planner. It never returns an error.
func (f *Fallback) Generate(_ context.Context, _ []domain.ConversationTurn, userText string) (string, error) {
	return f.Plan(userText), nil
}

// Intent keyword tables. Matching is substring containment against the
// lowercased input, and table order is load-bearing: the first matching
// rule wins across the whole catalog.
var (
	searchIndicators = []string{"search", "cari", "cek", "find", "lookup", "check", "weather", "cuaca", "google", "browse", "open", "buka", "untuk", "for"}
	searchStopWords  = []string{"buka", "open", "firefox", "dan", "and", "search", "cari", "find", "lookup", "check", "cek", "kondisi", "untuk", "for", "di", "in"}
	openKeywords     = []string{"buka", "open", "jalankan", "launch", "start", "run"}
	typeKeywords     = []string{"ketik", "type", "tulis", "write", "input"}
	clickKeywords    = []string{"klik", "click", "tekan", "press"}
	closeKeywords    = []string{"tutup", "close", "keluar", "exit"}
	maximizeKeywords = []string{"maksimal", "maximize", "besar", "max"}
	scrollKeywords   = []string{"scroll", "gulir"}
	scrollDownWords  = []string{"bawah", "down"}
	scrollUpWords    = []string{"atas", "up"}
)

type appEntry struct {
	patterns    []string
	executable  string
	displayName string
}

var appTable = []appEntry{
	{[]string{"kalkulator", "calculator", "calc"}, "xcalc", "calculator"},
	{[]string{"gedit", "editor", "text", "notepad"}, "gedit", "text editor"},
	{[]string{"terminal", "xterm", "console", "konsole"}, "xterm", "terminal"},
	{[]string{"nautilus", "file", "folder", "manager"}, "nautilus", "file manager"},
	{[]string{"browser", "firefox"}, "firefox-esr", "Firefox browser"},
}

type keyEntry struct {
	patterns []string
	keyName  string
}

var keyTable = []keyEntry{
	{[]string{"enter", "return"}, "Return"},
	{[]string{"escape", "esc"}, "Escape"},
	{[]string{"tab"}, "Tab"},
	{[]string{"space", "spasi"}, "space"},
	{[]string{"backspace"}, "BackSpace"},
	{[]string{"delete", "del"}, "Delete"},
	{[]string{"up", "atas"}, "Up"},
	{[]string{"down", "bawah"}, "Down"},
	{[]string{"left", "kiri"}, "Left"},
	{[]string{"right", "kanan"}, "Right"},
}

var coordsPattern = regexp.MustCompile(`(\d+)[,\s]+(\d+)`)

// Plan derives an action plan from user text by first-match-wins pattern
// matching and returns it as serialized JSON. Pure function, no I/O.
func (f *Fallback) Plan(userText string) string {
	input := strings.ToLower(strings.TrimSpace(userText))

	if strings.Contains(input, "firefox") {
		if containsAny(input, searchIndicators) {
			term := stripWords(input, searchStopWords)
			if term == "" {
				term = "informasi"
			}
			return marshalPlan(
				fmt.Sprintf("Opening Firefox and searching for %s", term),
				"DISPLAY=:1 firefox-esr &",
				"sleep 5",
				"xdotool key ctrl+l",
				"sleep 1",
				fmt.Sprintf("xdotool type %q", term),
				"xdotool key Return",
			)
		}
		return marshalPlan("Opening Firefox browser", "DISPLAY=:1 firefox-esr &")
	}

	if containsAny(input, openKeywords) {
		for _, app := range appTable {
			if containsAny(input, app.patterns) {
				return marshalPlan(
					fmt.Sprintf("Opening %s", app.displayName),
					fmt.Sprintf("DISPLAY=:1 %s &", app.executable),
				)
			}
		}
		// No table entry matched: treat the first contentful word as a
		// literal executable name.
		for _, word := range strings.Fields(input) {
			if len(word) > 2 && !contains(openKeywords, word) {
				return marshalPlan(
					fmt.Sprintf("Opening application %s", word),
					fmt.Sprintf("DISPLAY=:1 %s &", word),
				)
			}
		}
	}

	if containsAny(input, typeKeywords) {
		text := stripWords(input, typeKeywords)
		if text != "" {
			return marshalPlan(
				fmt.Sprintf("Typing text: %s", text),
				fmt.Sprintf("xdotool type %q", text),
			)
		}
	}

	// Click keywords without coordinates fall through; "press enter" must
	// reach the key table below.
	if containsAny(input, clickKeywords) {
		if m := coordsPattern.FindStringSubmatch(input); m != nil {
			return marshalPlan(
				fmt.Sprintf("Clicking at coordinates (%s, %s)", m[1], m[2]),
				fmt.Sprintf("xdotool mousemove %s %s", m[1], m[2]),
				"sleep 1",
				"xdotool click 1",
			)
		}
	}

	for _, entry := range keyTable {
		if containsAny(input, entry.patterns) {
			return marshalPlan(
				fmt.Sprintf("Pressing %s key", entry.keyName),
				fmt.Sprintf("xdotool key %s", entry.keyName),
			)
		}
	}

	if containsAny(input, closeKeywords) {
		return marshalPlan("Closing active window", "xdotool key alt+F4")
	}

	if containsAny(input, maximizeKeywords) {
		return marshalPlan("Maximizing window", "xdotool key super+Up")
	}

	if containsAny(input, scrollKeywords) {
		if containsAny(input, scrollDownWords) {
			return marshalPlan("Scrolling down", "xdotool click 5", "xdotool click 5", "xdotool click 5")
		}
		if containsAny(input, scrollUpWords) {
			return marshalPlan("Scrolling up", "xdotool click 4", "xdotool click 4", "xdotool click 4")
		}
	}

	if strings.Contains(input, "xdotool") {
		return marshalPlan("Executing direct xdotool command", strings.TrimSpace(userText))
	}

	return marshalPlan(
		"Need more specific instructions",
		`echo "Please provide commands like: 'open firefox', 'type hello world', 'click 300 200', 'press enter'"`,
	)
}

func containsAny(input string, words []string) bool {
	for _, w := range words {
		if strings.Contains(input, w) {
			return true
		}
	}
	return false
}

func contains(words []string, w string) bool {
	for _, word := range words {
		if word == w {
			return true
		}
	}
	return false
}

// stripWords removes every occurrence of the given words from the input and
// collapses the remaining whitespace.
func stripWords(input string, words []string) string {
	out := input
	for _, w := range words {
		out = strings.ReplaceAll(out, w, " ")
	}
	return strings.Join(strings.Fields(out), " ")
}

func marshalPlan(action string, commands ...string) string {
	data, err := json.Marshal(domain.ActionPlan{Action: action, Commands: commands})
	if err != nil {
		// Unreachable for a struct of strings; keep the planner total.
		return `{"action":"` + action + `","commands":[]}`
	}
	return string(data)
}
