package harness

import (
	"fmt"
	"strings"
)

// RenderMarkdown renders a run as Markdown. The output depends only on
// the scenario and the observed outcomes, never on run identity or wall
// clock, so identical runs render byte-identical reports.
func RenderMarkdown(r *Result) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Scenario Report: %s\n\n", r.Scenario))
	if r.Passed {
		sb.WriteString("Result: PASS\n\n")
	} else {
		sb.WriteString("Result: FAIL\n\n")
		sb.WriteString(fmt.Sprintf("**Violation:** %s\n\n", r.Violation))
	}

	sb.WriteString("## Steps\n\n")
	if len(r.Steps) > 0 {
		sb.WriteString("| Phase | # | Step | Outcome | Reason | Status |\n")
		sb.WriteString("|-------|---|------|---------|--------|--------|\n")
		for _, step := range r.Steps {
			status := "FAIL"
			if step.OK {
				status = "OK"
			}
			reason := step.Reason
			if reason == "" {
				reason = "-"
			}
			sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s | %s | %s |\n",
				step.Phase, step.Index, step.Description, step.Status, reason, status))
		}
	} else {
		sb.WriteString("No steps executed.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Assertions\n\n")
	if len(r.Checks) > 0 {
		sb.WriteString("| Check | Want | Got | Status |\n")
		sb.WriteString("|-------|------|-----|--------|\n")
		for _, check := range r.Checks {
			status := "FAIL"
			if check.OK {
				status = "OK"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				check.Description, check.Want, check.Got, status))
		}
	} else {
		sb.WriteString("No assertions evaluated.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
