package journal

import (
	"bytes"
	"os"
	"sort"
	"text/template"
	"time"

	"github.com/shopspring/decimal"
)

// SeriesSummary condenses the candles one series produced in a run.
type SeriesSummary struct {
	Series  string
	Candles int
	First   time.Time
	Last    time.Time
	High    decimal.Decimal
	Low     decimal.Decimal
	Volume  decimal.Decimal
}

// Summarize groups records by series, ordered by series key.
func Summarize(records []CandleRecord) []SeriesSummary {
	by := map[string]*SeriesSummary{}
	for _, r := range records {
		s, ok := by[r.Series]
		if !ok {
			s = &SeriesSummary{Series: r.Series, First: r.OpenTime, Last: r.CloseTime, High: r.High, Low: r.Low}
			by[r.Series] = s
		}
		s.Candles++
		if r.OpenTime.Before(s.First) {
			s.First = r.OpenTime
		}
		if r.CloseTime.After(s.Last) {
			s.Last = r.CloseTime
		}
		s.High = decimal.Max(s.High, r.High)
		s.Low = decimal.Min(s.Low, r.Low)
		s.Volume = s.Volume.Add(r.Volume)
	}

	out := make([]SeriesSummary, 0, len(by))
	for _, s := range by {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Series < out[j].Series })
	return out
}

type orgReport struct {
	RunRecord
	Summaries []SeriesSummary
}

var orgFuncs = template.FuncMap{
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
	"stamp": func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
}

var orgTmpl = template.Must(template.New("run").Funcs(orgFuncs).Parse(RunOrgTemplate))

// FormatRunOrg renders a run and its per-series summaries as an Org-mode
// block.
func FormatRunOrg(r RunRecord, summaries []SeriesSummary) (string, error) {
	var buf bytes.Buffer
	if err := orgTmpl.Execute(&buf, orgReport{RunRecord: r, Summaries: summaries}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func WriteRunOrg(path string, r RunRecord, summaries []SeriesSummary) error {
	s, err := FormatRunOrg(r, summaries)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(s), 0644)
}

const RunOrgTemplate = `* RUN: {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:PROPERTIES:
:RUN_ID:   {{.RunID}}
:VALUES:   {{.Values}}
:CANDLES:  {{.Candles}}
:CREATED:  [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Series
| Series | Candles | First | Last | High | Low | Volume |
|--------+---------+-------+------+------+-----+--------|
{{- range .Summaries }}
| {{.Series}} | {{.Candles}} | {{stamp .First}} | {{stamp .Last}} | {{.High}} | {{.Low}} | {{.Volume}} |
{{- end }}
{{- if .Notes }}

** Notes
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}
`
