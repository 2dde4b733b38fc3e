package service

import (
	"html/template"
	"io"
	"strings"

	"github.com/ludo-technologies/cblscan/domain"
)

// HTMLData is the view model of the HTML report
type HTMLData struct {
	GeneratedAt string
	Version     string
	Summary     domain.AnalyzeSummary
	Programs    []*domain.ProgramGraph
	Errors      []string
	Diagnostics int
}

var htmlFuncs = template.FuncMap{
	"join": func(elems []string, sep string) string {
		return strings.Join(elems, sep)
	},
	"targets": func(p *domain.ProgramGraph, name string) string {
		return strings.Join(p.CallGraph[name], ", ")
	},
	"riskClass": func(level domain.RiskLevel) string {
		if level == "" {
			return "risk-low"
		}
		return "risk-" + string(level)
	},
}

var htmlReport = template.Must(template.New("report").Funcs(htmlFuncs).Parse(htmlTemplate))

// WriteHTML writes the analysis response as a self-contained HTML page
func (f *OutputFormatterImpl) WriteHTML(response *domain.AnalyzeResponse, writer io.Writer) error {
	if response == nil {
		return domain.NewOutputError("nil response", nil)
	}
	data := HTMLData{
		GeneratedAt: response.GeneratedAt,
		Version:     response.Version,
		Summary:     response.Summary,
		Programs:    make([]*domain.ProgramGraph, 0, len(response.Programs)),
		Errors:      response.Errors,
	}
	for _, p := range response.Programs {
		sorted := *p
		sorted.Paragraphs = f.sortParagraphs(p.Paragraphs)
		data.Programs = append(data.Programs, &sorted)
		data.Diagnostics += len(p.Diagnostics)
	}
	return htmlReport.Execute(writer, data)
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>cblscan Structure Report</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            background: #eef1f6;
            min-height: 100vh;
        }
        .container { max-width: 1200px; margin: 0 auto; padding: 20px; }
        .header, .tabs {
            background: white;
            border-radius: 10px;
            box-shadow: 0 10px 30px rgba(0,0,0,0.1);
        }
        .header { padding: 30px; margin-bottom: 20px; }
        .header h1 { color: #1f4e79; margin-bottom: 10px; }
        .header .subtitle { color: #666; font-size: 14px; }
        .tabs { overflow: hidden; }
        .tab-buttons { display: flex; background: #f5f5f5; }
        .tab-button {
            flex: 1;
            padding: 15px;
            border: none;
            background: transparent;
            cursor: pointer;
            font-size: 16px;
        }
        .tab-button.active { background: white; color: #1f4e79; font-weight: bold; }
        .tab-content { display: none; padding: 30px; }
        .tab-content.active { display: block; }
        .metric-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(180px, 1fr));
            gap: 20px;
            margin: 20px 0;
        }
        .metric-card { background: #f8f9fa; padding: 20px; border-radius: 8px; text-align: center; }
        .metric-value { font-size: 32px; font-weight: bold; color: #1f4e79; }
        .metric-label { color: #666; margin-top: 5px; }
        .table { width: 100%; border-collapse: collapse; margin: 20px 0; }
        .table th, .table td { padding: 10px; text-align: left; border-bottom: 1px solid #ddd; }
        .table th { background: #f8f9fa; font-weight: 600; }
        .risk-low { color: #4caf50; }
        .risk-medium { color: #ff9800; }
        .risk-high { color: #f44336; }
        .unreachable { color: #999; font-style: italic; }
        .program { margin-bottom: 36px; }
        .program h3 { color: #2c3e50; }
        .meta { color: #666; font-size: 14px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>cblscan Structure Report</h1>
            <p class="subtitle">Generated: {{.GeneratedAt}} | Version: {{.Version}}</p>
        </div>

        <div class="tabs">
            <div class="tab-buttons">
                <button class="tab-button active" onclick="showTab('summary', this)">Summary</button>
                <button class="tab-button" onclick="showTab('programs', this)">Programs</button>
                <button class="tab-button" onclick="showTab('diagnostics', this)">Diagnostics</button>
            </div>

            <div id="summary" class="tab-content active">
                <h2>Summary</h2>
                <div class="metric-grid">
                    <div class="metric-card">
                        <div class="metric-value">{{.Summary.ProgramsAnalyzed}}</div>
                        <div class="metric-label">Programs</div>
                    </div>
                    <div class="metric-card">
                        <div class="metric-value">{{.Summary.TotalParagraphs}}</div>
                        <div class="metric-label">Paragraphs</div>
                    </div>
                    <div class="metric-card">
                        <div class="metric-value">{{.Summary.UnreachableParagraphs}}</div>
                        <div class="metric-label">Unreachable</div>
                    </div>
                    <div class="metric-card">
                        <div class="metric-value">{{printf "%.2f" .Summary.AverageComplexity}}</div>
                        <div class="metric-label">Avg Complexity</div>
                    </div>
                    <div class="metric-card">
                        <div class="metric-value">{{.Summary.Copybooks}}</div>
                        <div class="metric-label">Copybooks</div>
                    </div>
                    <div class="metric-card">
                        <div class="metric-value">{{.Diagnostics}}</div>
                        <div class="metric-label">Diagnostics</div>
                    </div>
                </div>
                {{if .Errors}}
                <h3>Files not analyzed</h3>
                <ul>
                    {{range .Errors}}<li>{{.}}</li>{{end}}
                </ul>
                {{end}}
            </div>

            <div id="programs" class="tab-content">
                {{range $p := .Programs}}
                <div class="program">
                    <h3>{{$p.ProgramID}}</h3>
                    <p class="meta">{{$p.FilePath}} | Entry: {{$p.EntryParagraph}} | Complexity: {{$p.Complexity}}{{if $p.Copybooks}} | Copybooks: {{join $p.Copybooks ", "}}{{end}}</p>
                    <table class="table">
                        <thead>
                            <tr>
                                <th>Paragraph</th>
                                <th>Line</th>
                                <th>Complexity</th>
                                <th>Risk</th>
                                <th>Transfers to</th>
                            </tr>
                        </thead>
                        <tbody>
                            {{range $para := $p.Paragraphs}}
                            <tr{{if not $para.Reachable}} class="unreachable"{{end}}>
                                <td>{{$para.Name}}</td>
                                <td>{{$para.StartLine}}</td>
                                <td>{{$para.Complexity}}</td>
                                <td class="{{riskClass $para.RiskLevel}}">{{$para.RiskLevel}}</td>
                                <td>{{targets $p $para.Name}}</td>
                            </tr>
                            {{end}}
                        </tbody>
                    </table>
                </div>
                {{end}}
            </div>

            <div id="diagnostics" class="tab-content">
                {{if gt .Diagnostics 0}}
                <table class="table">
                    <thead>
                        <tr>
                            <th>Program</th>
                            <th>Line</th>
                            <th>Category</th>
                            <th>Subject</th>
                            <th>Message</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range $p := .Programs}}
                        {{range $d := $p.Diagnostics}}
                        <tr>
                            <td>{{$p.ProgramID}}</td>
                            <td>{{$d.Line}}</td>
                            <td>{{$d.Category}}</td>
                            <td>{{$d.Subject}}</td>
                            <td>{{$d.Message}}</td>
                        </tr>
                        {{end}}
                        {{end}}
                    </tbody>
                </table>
                {{else}}
                <p style="color: #4caf50; font-weight: bold; margin-top: 20px;">No diagnostics</p>
                {{end}}
            </div>
        </div>
    </div>

    <script>
        function showTab(tabName, el) {
            document.querySelectorAll('.tab-content').forEach(tab => tab.classList.remove('active'));
            document.querySelectorAll('.tab-button').forEach(btn => btn.classList.remove('active'));
            document.getElementById(tabName).classList.add('active');
            if (el) { el.classList.add('active'); }
        }
    </script>
</body>
</html>`
