package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
)

const renderWidth = 100

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printMarkdown renders text as terminal markdown, falling back to the raw
// text if the renderer cannot be built.
func (a *App) printMarkdown(text string) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(renderWidth),
	)
	if err == nil {
		var out string
		if out, err = r.Render(text); err == nil {
			fmt.Fprint(a.stdout, out)
			return
		}
	}
	a.logger.Debug("markdown rendering failed", "error", err)
	fmt.Fprintln(a.stdout, text)
}

// parseInputs turns repeated key=value flags into app inputs.
func parseInputs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	inputs := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, exitWithCode(ExitValidation, fmt.Errorf("invalid input %q: want key=value", pair))
		}
		inputs[key] = value
	}
	return inputs, nil
}
