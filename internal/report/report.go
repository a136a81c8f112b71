package report

import (
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"text/template"
	"time"

	"github.com/FranksOps/igmention/internal/storage"
)

// Summary describes one search run, or a results file read back from disk.
type Summary struct {
	RunID          string              `json:"run_id,omitempty"`
	Username       string              `json:"username,omitempty"`
	Output         string              `json:"output,omitempty"`
	StartTime      time.Time           `json:"start_time"`
	EndTime        time.Time           `json:"end_time"`
	Duration       time.Duration       `json:"duration"`
	QueriesRun     int                 `json:"queries_run"`
	PagesFetched   int                 `json:"pages_fetched"`
	PagesBlocked   int                 `json:"pages_blocked"`
	PagesEmpty     int                 `json:"pages_without_blocks"`
	FetchErrors    int                 `json:"fetch_errors"`
	StatusCodes    map[int]int         `json:"status_codes"`
	BlocksByReason map[string]int      `json:"blocks_by_reason"`
	CandidatesSeen int                 `json:"candidates_seen"`
	CandidatesKept int                 `json:"candidates_kept"`
	Duplicates     int                 `json:"duplicates_dropped"`
	Results        []storage.Candidate `json:"results"`
}

// New returns an empty Summary with its maps allocated.
func New(runID, username string) *Summary {
	return &Summary{
		RunID:          runID,
		Username:       username,
		StatusCodes:    make(map[int]int),
		BlocksByReason: make(map[string]int),
	}
}

// AddPage folds one fetched page into the counters.
func (s *Summary) AddPage(p *storage.Page) {
	if p == nil {
		return
	}
	s.PagesFetched++
	if p.StatusCode > 0 {
		s.StatusCodes[p.StatusCode]++
	}
	if p.Blocked {
		s.PagesBlocked++
		s.BlocksByReason[p.BlockReason]++
	} else if p.Error != "" {
		s.FetchErrors++
	}
	if s.StartTime.IsZero() || (!p.FetchedAt.IsZero() && p.FetchedAt.Before(s.StartTime)) {
		s.StartTime = p.FetchedAt
	}
	if end := p.FetchedAt.Add(p.Duration); end.After(s.EndTime) {
		s.EndTime = end
	}
	s.Duration = s.EndTime.Sub(s.StartTime)
}

// FromResults summarizes a persisted results file.
func FromResults(path string, results []storage.Candidate) *Summary {
	s := New("", "")
	s.Output = path
	s.CandidatesKept = len(results)
	s.Results = results
	return s
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary *Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	return nil
}

const textTmpl = `igmention Summary
-----------------
{{- if .Username}}
Username:      {{.Username}}
{{- end}}
{{- if .RunID}}
Run:           {{.RunID}}
{{- end}}
{{- if not .StartTime.IsZero}}
Time:          {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Duration:      {{.Duration}}
{{- end}}
{{- if .PagesFetched}}
Queries:       {{.QueriesRun}}
Pages:         {{.PagesFetched}} fetched, {{.PagesBlocked}} blocked, {{.PagesEmpty}} without result blocks
Fetch Errors:  {{.FetchErrors}}
Candidates:    {{.CandidatesSeen}} seen, {{.Duplicates}} duplicates

Status Codes:
{{- range $code, $count := .StatusCodes}}
  {{$code}}: {{$count}}
{{- else}}
  None
{{- end}}

Blocks:
{{- range $reason, $count := .BlocksByReason}}
  {{$reason}}: {{$count}}
{{- else}}
  None
{{- end}}
{{- end}}
{{- if .Output}}
Output:        {{.Output}}
{{- end}}

Found {{.CandidatesKept}} potential result(s):
{{- range .Results}}
- {{.Link}} ({{.Title}})
{{- else}}
  None
{{- end}}
`

var textReport = template.Must(template.New("textReport").Parse(textTmpl))

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary *Summary) error {
	if err := textReport.Execute(w, summary); err != nil {
		return fmt.Errorf("report: render text: %w", err)
	}
	return nil
}

const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>igmention Report{{if .Username}}: {{.Username}}{{end}}</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>igmention Report{{if .Username}}: {{.Username}}{{end}}</h1>
  {{- if not .StartTime.IsZero}}
  <p><strong>Time:</strong> {{.StartTime.Format "2006-01-02 15:04:05"}} to {{.EndTime.Format "2006-01-02 15:04:05"}} ({{.Duration}})</p>
  {{- end}}

  <div class="stat-card">
    <div>Pages</div>
    <div class="stat-val">{{.PagesFetched}}</div>
  </div>
  <div class="stat-card">
    <div>Blocked</div>
    <div class="stat-val" style="color: {{if gt .PagesBlocked 0}}red{{else}}green{{end}};">{{.PagesBlocked}}</div>
  </div>
  <div class="stat-card">
    <div>Kept</div>
    <div class="stat-val">{{.CandidatesKept}}</div>
  </div>

  <h3>Results</h3>
  <table>
    <tr><th>Title</th><th>Link</th><th>Snippet</th></tr>
    {{- range .Results}}
    <tr><td>{{.Title}}</td><td><a href="{{.Link}}">{{.Link}}</a></td><td>{{.Snippet}}</td></tr>
    {{- else}}
    <tr><td colspan="3">None</td></tr>
    {{- end}}
  </table>
</body>
</html>
`

var htmlReport = htmltemplate.Must(htmltemplate.New("htmlReport").Parse(htmlTmpl))

// WriteHTML writes a basic HTML report to the provided writer. Result text is
// escaped since it comes straight from search pages.
func WriteHTML(w io.Writer, summary *Summary) error {
	if err := htmlReport.Execute(w, summary); err != nil {
		return fmt.Errorf("report: render html: %w", err)
	}
	return nil
}

// Write renders summary in format: "text", "json" or "html".
func Write(w io.Writer, format string, summary *Summary) error {
	switch format {
	case "", "text":
		return WriteText(w, summary)
	case "json":
		return WriteJSON(w, summary)
	case "html":
		return WriteHTML(w, summary)
	default:
		return fmt.Errorf("report: unknown format %q", format)
	}
}
