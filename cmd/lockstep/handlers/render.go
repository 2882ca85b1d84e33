package handlers

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/lockstepd/lockstep/internal/plan"
	"github.com/lockstepd/lockstep/internal/provisioning"
	"github.com/lockstepd/lockstep/internal/state"
)

var (
	colorGreen = lipgloss.Color("#22c55e")
	colorRed   = lipgloss.Color("#ef4444")
	colorBlue  = lipgloss.Color("#3b82f6")
	colorAmber = lipgloss.Color("#f59e0b")
	colorDim   = lipgloss.Color("#6b7280")
	colorWhite = lipgloss.Color("#f9fafb")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	blueStyle = lipgloss.NewStyle().
			Foreground(colorBlue)

	greenStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	redStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	amberStyle = lipgloss.NewStyle().
			Foreground(colorAmber)
)

// renderRunReport produces the styled report of one apply, verify, harden,
// or destroy run.
func renderRunReport(command string, result *provisioning.Result) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(titleStyle.Render(fmt.Sprintf("  lockstep %s: %s/%s", command, result.Project, result.Environment)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  " + strings.Repeat("═", 40)))
	b.WriteString("\n")

	outcomes := result.Outcomes()
	if len(outcomes) > 0 {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("  Resources"))
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %-14s %-14s %-22s %s", "Name", "Kind", "ID", "Action")))
		b.WriteString("\n")
		for _, outcome := range outcomes {
			line := fmt.Sprintf("  %-14s %-14s %-22s %s", outcome.Name, outcome.Kind, valueOrDash(outcome.ID), renderAction(outcome.Action))
			b.WriteString(line)
			if outcome.Detail != "" {
				b.WriteString(dimStyle.Render("  " + outcome.Detail))
			}
			b.WriteString("\n")
		}
	}

	if result.Probe != nil {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render("  Verification"))
		b.WriteString("\n")
		for _, check := range result.Probe.Checks {
			style := greenStyle
			if !check.Passed {
				style = redStyle
			}
			b.WriteString("  ")
			b.WriteString(style.Render(check.String()))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(renderSummaryLine(command, result))
	b.WriteString("\n")

	if result.HardeningNote != "" {
		b.WriteString(amberStyle.Render("  " + result.HardeningNote))
		b.WriteString("\n")
	}

	return b.String()
}

// renderSummaryLine condenses the run into one line.
func renderSummaryLine(command string, result *provisioning.Result) string {
	outcomes := result.Outcomes()

	counts := make(map[provisioning.Action]int)
	for _, outcome := range outcomes {
		counts[outcome.Action]++
	}

	var parts []string
	for _, action := range []provisioning.Action{
		provisioning.ActionCreated,
		provisioning.ActionImported,
		provisioning.ActionUnchanged,
		provisioning.ActionDestroyed,
		provisioning.ActionFailed,
	} {
		if counts[action] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[action], action))
		}
	}
	if len(parts) == 0 {
		parts = append(parts, "nothing to do")
	}

	duration := ""
	if !result.FinishedAt.IsZero() {
		duration = dimStyle.Render(fmt.Sprintf(" in %s", result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond)))
	}

	summary := fmt.Sprintf("  %s: %s%s", command, strings.Join(parts, ", "), duration)
	if counts[provisioning.ActionFailed] > 0 {
		return redStyle.Render(summary)
	}
	if result.HardeningApplied {
		summary += dimStyle.Render("  (hardened)")
	}
	return summary
}

// renderAction styles a resource outcome by how much it changed the world.
func renderAction(action provisioning.Action) string {
	switch action {
	case provisioning.ActionCreated:
		return greenStyle.Render(string(action))
	case provisioning.ActionImported:
		return blueStyle.Render(string(action))
	case provisioning.ActionFailed:
		return redStyle.Render(string(action))
	case provisioning.ActionDestroyed:
		return amberStyle.Render(string(action))
	default:
		return dimStyle.Render(string(action))
	}
}

// renderPlan produces the styled wave-by-wave execution plan.
func renderPlan(project, environment string, parallelism int, entries []planEntry) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(titleStyle.Render(fmt.Sprintf("  lockstep plan: %s/%s", project, environment)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  " + strings.Repeat("═", 40)))
	b.WriteString("\n")

	currentWave := 0
	for _, entry := range entries {
		if entry.Wave != currentWave {
			currentWave = entry.Wave
			b.WriteString("\n")
			b.WriteString(sectionStyle.Render(fmt.Sprintf("  Wave %d", currentWave)))
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("    %-14s %-14s %s", entry.Name, entry.Kind, entry.ProviderName))
		if len(entry.DependsOn) > 0 {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  (after: %s)", strings.Join(entry.DependsOn, ", "))))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %d resources, up to %d applied in parallel per wave", len(entries), parallelism)))
	b.WriteString("\n")

	return b.String()
}

// renderStatus produces the styled tracked-state table.
func renderStatus(doc *state.Document) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(titleStyle.Render(fmt.Sprintf("  lockstep status: %s/%s", doc.Project, doc.Environment)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  " + strings.Repeat("═", 40)))
	b.WriteString("\n")

	if len(doc.Resources) == 0 {
		b.WriteString("\n  nothing tracked: the deployment has not been applied\n")
		return b.String()
	}

	names := make([]string, 0, len(doc.Resources))
	for name := range doc.Resources {
		names = append(names, name)
	}
	sort.Strings(names)

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %-14s %-14s %-22s %-10s %-10s %s", "Name", "Kind", "ID", "Outcome", "Effective", "Hardened")))
	b.WriteString("\n")
	for _, name := range names {
		record := doc.Resources[name]
		// Styled columns carry their own padding; ANSI escapes would
		// break printf width counting.
		b.WriteString(fmt.Sprintf("  %-14s %-14s %-22s %s %s %s\n",
			name,
			record.Kind,
			valueOrDash(record.ID),
			renderOutcome(record.Outcome),
			renderFlag(record.Effective, record.Kind == plan.KindBinding),
			renderFlag(record.Hardened, false),
		))
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("  serial %d, last run %s, updated %s",
		doc.Serial, valueOrDash(doc.RunID), doc.UpdatedAt.Format(time.RFC3339))))
	b.WriteString("\n")

	return b.String()
}

// renderOutcome styles the recorded apply outcome.
func renderOutcome(outcome string) string {
	switch outcome {
	case state.OutcomeSucceeded:
		return greenStyle.Render(fmt.Sprintf("%-10s", outcome))
	case state.OutcomeFailed:
		return redStyle.Render(fmt.Sprintf("%-10s", outcome))
	default:
		return amberStyle.Render(fmt.Sprintf("%-10s", outcome))
	}
}

// renderFlag renders a boolean column. Flags that do not apply to the
// resource render dimmed so the table stays scannable.
func renderFlag(set, expected bool) string {
	if set {
		return greenStyle.Render(fmt.Sprintf("%-10s", "yes"))
	}
	if expected {
		return amberStyle.Render(fmt.Sprintf("%-10s", "no"))
	}
	return dimStyle.Render(fmt.Sprintf("%-10s", "-"))
}

func valueOrDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
