package notifier

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"text/tabwriter"
	"time"

	"WatchSentinel/internal/model"
)

// FormatWatchlist renders ordered entries with their quotes as a fixed-width table.
func FormatWatchlist(entries []model.WatchEntry, quotes model.QuoteSnapshot, sort model.SortState) string {
	var b strings.Builder
	mode := string(sort.SortType)
	if sort.IsManualSort {
		mode = "manual"
	}
	b.WriteString(fmt.Sprintf("📊 <b>Watchlist</b> | %s | %s\n", mode, time.Now().Format("15:04:05")))
	if len(entries) == 0 {
		b.WriteString("empty, add codes first")
		return b.String()
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 1, ' ', 0)
	fmt.Fprintln(w, "CODE\tNAME\tPRICE\tCHG%")
	for _, e := range entries {
		q, ok := quotes[e.Code]
		if !ok {
			fmt.Fprintf(w, "%s\t-\t-\t-\n", e.Code)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%+.2f%%\n", e.Code, q.Name, q.Price, q.ChangePercent)
	}
	_ = w.Flush()
	b.WriteString("<pre>")
	b.WriteString(html.EscapeString(strings.TrimRight(buf.String(), "\n")))
	b.WriteString("</pre>")
	return b.String()
}

// FormatAlerts renders the alert list with state markers.
func FormatAlerts(rules []model.AlertRule) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔔 <b>Alerts</b> (%d)\n", len(rules)))
	if len(rules) == 0 {
		b.WriteString("none configured")
		return b.String()
	}
	for _, r := range rules {
		state := "armed"
		if r.Triggered {
			state = "fired"
			if r.LastTriggerPrice != nil {
				state = fmt.Sprintf("fired @ %.2f", *r.LastTriggerPrice)
			}
		}
		target := fmt.Sprintf("%.2f", r.TargetValue)
		if r.Type == model.AlertPercent {
			target = fmt.Sprintf("%+.2f%%", r.TargetValue)
		}
		b.WriteString(fmt.Sprintf("• %s %s %s %s [%s, %s]\n",
			html.EscapeString(r.Code), r.Type, r.Condition, target, r.TimePeriod, state))
	}
	return strings.TrimRight(b.String(), "\n")
}
