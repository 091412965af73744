// Parsing of the model's sectioned or JSON explanation output.
package explain

import (
	"encoding/json"
	"strings"
)

const finalPrefix = "FINAL:"

// SectionKeys is the display order for explanation sections.
var SectionKeys = []string{"overview", "components", "data_flow", "assumptions", "risks", "open_questions"}

// SectionTitles maps section keys to their headings in model output.
var SectionTitles = map[string]string{
	"overview":       "Overview",
	"components":     "Key Components",
	"data_flow":      "Data Flow",
	"assumptions":    "Assumptions",
	"risks":          "Risks / Pitfalls",
	"open_questions": "Open Questions",
}

// StripFinalPrefix removes a leading FINAL: marker, if present.
func StripFinalPrefix(text string) string {
	stripped := strings.TrimSpace(text)
	if strings.HasPrefix(stripped, finalPrefix) {
		return strings.TrimLeft(strings.TrimPrefix(stripped, finalPrefix), " \t\r\n")
	}
	return text
}

// HasFinalPrefix reports whether the reply carries the FINAL: marker.
func HasFinalPrefix(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), finalPrefix)
}

// ParseSections splits a markdown-ish reply into the known sections. Text
// before any recognized heading, or a reply with no headings at all, lands in
// the overview. Empty sections read "Not provided."
func ParseSections(text string) map[string]string {
	normalized := strings.TrimSpace(StripFinalPrefix(text))
	sections := make(map[string]string, len(SectionKeys))
	for _, key := range SectionKeys {
		sections[key] = ""
	}
	current := ""
	for _, line := range strings.Split(normalized, "\n") {
		stripped := strings.TrimSpace(line)
		if key := matchSectionHeading(stripped); key != "" {
			current = key
			remainder := strings.TrimSpace(strings.TrimLeft(stripped[len(SectionTitles[key]):], ":"))
			if remainder != "" {
				sections[current] += remainder + "\n"
			}
			continue
		}
		if current != "" {
			sections[current] += line + "\n"
		}
	}
	empty := true
	for _, value := range sections {
		if strings.TrimSpace(value) != "" {
			empty = false
			break
		}
	}
	if empty {
		sections["overview"] = normalized
	}
	for key, value := range sections {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			sections[key] = trimmed
		} else {
			sections[key] = "Not provided."
		}
	}
	return sections
}

func matchSectionHeading(line string) string {
	lower := strings.ToLower(line)
	for _, key := range SectionKeys {
		if strings.HasPrefix(lower, strings.ToLower(SectionTitles[key])) {
			return key
		}
	}
	return ""
}

// Component is one named component in the JSON explanation payload.
type Component struct {
	Name           string `json:"name"`
	Responsibility string `json:"responsibility"`
}

// Explanation is the strict JSON reply shape for --json mode.
type Explanation struct {
	Overview      string      `json:"overview"`
	Components    []Component `json:"components"`
	DataFlow      string      `json:"data_flow"`
	Assumptions   []string    `json:"assumptions"`
	Risks         []string    `json:"risks"`
	OpenQuestions []string    `json:"open_questions"`
}

// ParseJSONResponse decodes and validates a JSON explanation. It returns nil
// when the payload is not valid JSON or has extra, missing, or mistyped
// fields.
func ParseJSONResponse(text string) *Explanation {
	normalized := strings.TrimSpace(StripFinalPrefix(text))

	// First decode loosely to reject unexpected or missing keys.
	var generic map[string]json.RawMessage
	if err := json.Unmarshal([]byte(normalized), &generic); err != nil {
		return nil
	}
	required := map[string]bool{
		"overview": true, "components": true, "data_flow": true,
		"assumptions": true, "risks": true, "open_questions": true,
	}
	if len(generic) != len(required) {
		return nil
	}
	for key := range required {
		if _, ok := generic[key]; !ok {
			return nil
		}
	}

	// Each component must carry exactly a name and a responsibility.
	var rawComponents []map[string]json.RawMessage
	if err := json.Unmarshal(generic["components"], &rawComponents); err != nil {
		return nil
	}
	for _, component := range rawComponents {
		if len(component) != 2 {
			return nil
		}
		if _, ok := component["name"]; !ok {
			return nil
		}
		if _, ok := component["responsibility"]; !ok {
			return nil
		}
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()
	var payload Explanation
	if err := decoder.Decode(&payload); err != nil {
		return nil
	}
	if payload.Components == nil || payload.Assumptions == nil || payload.Risks == nil || payload.OpenQuestions == nil {
		return nil
	}
	return &payload
}
