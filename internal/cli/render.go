package cli

import (
	"fmt"
	"strings"

	"github.com/Veraticus/spice-capture/internal/finish"
	"github.com/Veraticus/spice-capture/internal/model"
	"github.com/charmbracelet/lipgloss"
)

// RenderTurnResponse formats an engine response for the terminal.
func RenderTurnResponse(resp *model.TurnResponse) string {
	if resp == nil {
		return ""
	}

	var parts []string
	switch resp.Node {
	case model.NodeEnd:
		parts = append(parts, FormatSuccess(resp.Message))
	case model.NodeClarify:
		parts = append(parts, FormatInfo(resp.Message))
	default:
		parts = append(parts, InfoStyle.Render(RobotIcon+" "+resp.Message))
	}

	if resp.AwaitingConfirmation && resp.Draft != nil {
		parts = append(parts, RenderDraft(resp.Draft, resp.RecordVersion))
	}
	if resp.BudgetWarning != nil {
		parts = append(parts, FormatWarning(finish.WarningSummary(resp.BudgetWarning)))
	}
	if resp.Advice != nil && *resp.Advice != "" {
		parts = append(parts, SubtleStyle.Render("💡 "+*resp.Advice))
	}

	return strings.Join(parts, "\n")
}

// RenderDraft renders the fields of a draft in a box.
func RenderDraft(d *model.Draft, version int) string {
	rows := [][2]string{
		{"Amount", model.FormatAmount(d.Amount)},
		{"Where", d.Counterparty},
		{"What", d.Description},
		{"Date", d.Date.Format("Mon 2 Jan 2006")},
		{"Category", fmt.Sprintf("%s (%s)", d.CategoryName, d.CategorySource)},
	}

	lines := make([]string, 0, len(rows)+1)
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		lines = append(lines, BoldStyle.Width(10).Render(r[0])+r[1])
	}
	if version > 1 {
		lines = append(lines, SubtleStyle.Render(fmt.Sprintf("revision %d", version)))
	}
	return DraftBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// RenderRecords renders records as a table, newest first.
func RenderRecords(records []model.CandidateRecord) string {
	if len(records) == 0 {
		return SubtleStyle.Render("No records yet.")
	}

	var sb strings.Builder
	sb.WriteString(TableHeaderStyle.Render(fmt.Sprintf("%-10s  %-12s  %-20s  %-18s  %s", "DATE", "AMOUNT", "WHERE", "CATEGORY", "STATUS")))
	sb.WriteString("\n")
	for _, r := range records {
		status := SubtleStyle.Render(string(r.Status))
		if r.IsConfirmed() {
			status = SuccessStyle.Render(string(r.Status))
		}
		fmt.Fprintf(&sb, "%-10s  %12s  %-20s  %-18s  %s\n",
			r.Date.Format("2006-01-02"),
			model.FormatAmount(r.Amount),
			truncate(r.Counterparty, 20),
			truncate(r.CategoryName, 18),
			status)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// RenderRules renders categorization rules as a table.
func RenderRules(rules []model.CategorizationRule) string {
	if len(rules) == 0 {
		return SubtleStyle.Render("No rules yet.")
	}

	var sb strings.Builder
	sb.WriteString(TableHeaderStyle.Render(fmt.Sprintf("%-24s  %-8s  %-18s  %-5s  %s", "PATTERN", "TYPE", "CATEGORY", "CONF", "USES")))
	sb.WriteString("\n")
	for _, r := range rules {
		fmt.Fprintf(&sb, "%-24s  %-8s  %-18s  %.2f   %d\n",
			truncate(r.Pattern, 24), r.MatchType, truncate(r.CategoryName, 18), r.Confidence, r.UseCount)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
