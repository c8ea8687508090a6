package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"PersonaPipeline/internal/domain"
)

const maxTitleWidth = 60

func buildPersonaRows(personas []domain.Persona) [][]string {
	rows := make([][]string, 0, len(personas))
	for _, p := range personas {
		status := string(p.Status)
		if p.Status == domain.StatusError && p.ErrorMessage != "" {
			status += ": " + truncate(p.ErrorMessage, 40)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", p.ID),
			p.Slug,
			string(p.Platform),
			status,
			formatCount(p.Totals.Content),
			formatCount(p.Totals.Words),
			formatDisplayTime(p.UpdatedAt),
		})
	}
	return rows
}

func buildContentRows(items []domain.ContentItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		words := "-"
		if item.WordCount != nil {
			words = formatCount(*item.WordCount)
		}
		status := string(item.Status)
		if item.ErrorMessage != "" {
			status += " (" + item.ErrorMessage + ")"
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", item.ID),
			string(item.ContentType),
			status,
			words,
			truncate(item.Title, maxTitleWidth),
		})
	}
	return rows
}

func renderReport(report domain.RunReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s run for %s: ", report.Kind, displayName(report))
	switch {
	case report.Skipped:
		fmt.Fprintf(&b, "skipped (%s)\n", report.SkipReason)
		return b.String()
	case report.Error != "":
		fmt.Fprintf(&b, "%s (%s)\n", report.Status, report.Error)
	default:
		fmt.Fprintf(&b, "%s\n", report.Status)
	}

	if len(report.Items) > 0 {
		rows := make([][]string, 0, len(report.Items))
		for _, item := range report.Items {
			detail := item.Reason
			if item.Outcome == domain.OutcomeAnalyzed {
				detail = fmt.Sprintf("%d words", item.WordCount)
			}
			rows = append(rows, []string{
				fmt.Sprintf("%d", item.ItemID),
				string(item.Outcome),
				truncate(item.Title, maxTitleWidth),
				detail,
			})
		}
		b.WriteString(renderTable(
			[]string{"Item", "Outcome", "Title", "Detail"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
		))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "discovered %d, new %d, analyzed %d, failed %d\n",
		report.Discovered, report.NewItems,
		report.Count(domain.OutcomeAnalyzed), report.Count(domain.OutcomeFailed))
	fmt.Fprintf(&b, "profile built from %d items, %d words (took %s)",
		report.Totals.Content, report.Totals.Words,
		report.FinishedAt.Sub(report.StartedAt).Round(time.Second))
	return b.String()
}

func displayName(report domain.RunReport) string {
	if report.PersonaName != "" {
		return report.PersonaName
	}
	return fmt.Sprintf("persona %d", report.PersonaID)
}

func formatCount(n int) string {
	return strconv.Itoa(n)
}

func formatDisplayTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func truncate(s string, n int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n-1]) + "…"
}
