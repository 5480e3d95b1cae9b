package relay

import (
	"fmt"
	"strings"
)

// DefaultMaxPromptChars is the safety cap on prompt length, in runes
const DefaultMaxPromptChars = 10000

// ComposePrompt builds the career-coach instruction for a resume and target role.
// Skill gaps come from the client-side matcher and are optional.
func ComposePrompt(targetRole, resumeText string, skillGaps []string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf(
		"You are an expert career coach. Analyze the following resume text for a candidate targeting a %q position. ",
		strings.TrimSpace(targetRole)))
	b.WriteString(`Provide personalized, actionable feedback in Markdown format with two sections: "Resume Improvement Suggestions" and "Skill-Gap Action Plan".`)

	gaps := make([]string, 0, len(skillGaps))
	for _, s := range skillGaps {
		if s = strings.TrimSpace(s); s != "" {
			gaps = append(gaps, s)
		}
	}
	if len(gaps) > 0 {
		b.WriteString("\n\nSkills the resume is missing for this role: ")
		b.WriteString(strings.Join(gaps, ", "))
		b.WriteString(".")
	}

	b.WriteString("\n\nResume:\n")
	b.WriteString(strings.TrimSpace(resumeText))
	return b.String()
}

// Truncate cuts s to at most max runes. It reports whether anything was cut.
func Truncate(s string, max int) (string, bool) {
	if max <= 0 {
		return s, false
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i], true
		}
		n++
	}
	return s, false
}
