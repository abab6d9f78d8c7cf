package stats

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"text/template"
	"time"

	"github.com/shopspring/decimal"
)

var recordHeader = []string{
	"start", "end", "trades", "wins", "losses", "breakeven",
	"net_result", "largest_win", "largest_loss", "win_rate",
}

// WriteCSV writes one row per bucket followed by a totals row whose start
// column reads "total".
func WriteCSV(w io.Writer, r *Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(recordHeader); err != nil {
		return err
	}
	for _, rec := range r.Records {
		if err := cw.Write(totalsRow(day(rec.Start), day(rec.End), rec.Totals)); err != nil {
			return err
		}
	}
	if err := cw.Write(totalsRow("total", "", r.Totals)); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func totalsRow(start, end string, t Totals) []string {
	return []string{
		start,
		end,
		strconv.Itoa(t.Trades),
		strconv.Itoa(t.Wins),
		strconv.Itoa(t.Losses),
		strconv.Itoa(t.Breakeven),
		t.NetResult.StringFixed(2),
		t.LargestWin.StringFixed(2),
		t.LargestLoss.StringFixed(2),
		strconv.FormatFloat(t.WinRate(), 'f', 4, 64),
	}
}

func day(t time.Time) string {
	return t.Format("2006-01-02")
}

// OrgReport is the data behind ReportOrgTemplate.
type OrgReport struct {
	Title    string
	Account  string
	Report   *Report
	Controls *Controls
}

var reportOrgFuncs = template.FuncMap{
	"day":   day,
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"pct":   func(x float64) string { return fmt.Sprintf("%.1f%%", x*100) },
}

var reportOrg = template.Must(template.New("report").Funcs(reportOrgFuncs).Parse(ReportOrgTemplate))

// FormatOrg renders the report as an Org-mode outline: a PROPERTIES drawer
// with the totals, then one heading per year and one table per month.
func FormatOrg(w io.Writer, v OrgReport) error {
	if v.Controls == nil {
		v.Controls = BuildControls(v.Report)
	}
	return reportOrg.Execute(w, v)
}

const ReportOrgTemplate = `* REPORT: {{if .Title}}{{.Title}}{{else}}Trade record{{end}}
:PROPERTIES:
:ACCOUNT:     {{if .Account}}{{.Account}}{{else}}(account?){{end}}
:GRANULARITY: {{.Report.Granularity}}
:FILTER:      {{.Report.Filter}}
{{- if not .Report.Range.IsZero}}
:START_DATE:  {{day .Report.Range.Start}}
:END_DATE:    {{day .Report.Range.End}}
{{- end}}
:TRADES:      {{.Report.Totals.Trades}}
:WINS:        {{.Report.Totals.Wins}}
:LOSSES:      {{.Report.Totals.Losses}}
:BREAKEVEN:   {{.Report.Totals.Breakeven}}
:NET_RESULT:  {{money .Report.Totals.NetResult}}
:WIN_RATE:    {{pct .Report.Totals.WinRate}}
:INCOMPLETE:  {{.Report.Incomplete}}
:END:
{{- $r := .Report}}
{{- range .Controls.Years}}

** {{.Year}} ({{.Trades}} trades, {{money .NetResult}})
{{- range .Months}}
*** {{.Month}}{{if not .HasTrades}} :empty:{{end}}
| Start      | Trades | Wins | Losses | Net | Win rate |
|------------+--------+------+--------+-----+----------|
{{- range $r.Month .}}
| {{day .Start}} | {{.Trades}} | {{.Wins}} | {{.Losses}} | {{money .NetResult}} | {{pct .WinRate}} |
{{- end}}
{{- end}}
{{- end}}
`
