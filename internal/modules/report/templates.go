package report

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
)

// Subjects of the two report variants
const (
	SubjectReport = "Relatório de mercado (Trabalho Big Data)"
	SubjectNoData = "Relatório de mercado (Trabalho Big Data) - Sem Registros"
)

var noDataTemplate = template.Must(template.New("no_data").Parse(`<body>
    <h2>Prezado,</h2>
    <p>Para o período solicitado de <strong>{{.InitialDate}}</strong> até <strong>{{.FinalDate}}</strong>,
    não foram encontrados registros para gerar o relatório de mercado.</p>
    <p>Atenciosamente,<br>Grupo do Trabalho</p>
</body>
`))

var reportTemplate = template.Must(template.New("report").Parse(`<body>
    <h2>Prezado,</h2>
    <p>Para o período solicitado de <strong>{{.InitialDate}}</strong> até <strong>{{.FinalDate}}</strong>, segue o relatório de mercado:</p>
    <ul>
    {{- range .Instruments}}
        <li>O ativo <strong>{{.Label}}</strong> teve o retorno médio de <strong>{{.Average}}</strong>.</li>
    {{- end}}
        <li>Total de <strong>{{.Count}}</strong> registros encontrados.</li>
    </ul>
    {{- if .HasDetails}}
    <p>Resumo do período:</p>
    <ul>
    {{- range .Instruments}}{{if .Days}}
        <li><strong>{{.Label}}</strong>: retorno acumulado de {{.Cumulative}}, volatilidade diária de {{.Volatility}}, melhor dia {{.BestDate}} ({{.Best}}), pior dia {{.WorstDate}} ({{.Worst}}).</li>
    {{- end}}{{end}}
    </ul>
    {{- end}}
    <p>Em anexo se encontram também a performance dos ativos no período selecionado.</p>
    <p>Atenciosamente,<br>Grupo do Trabalho</p>
</body>
`))

type periodData struct {
	InitialDate string
	FinalDate   string
}

type instrumentSummary struct {
	Label      string
	Average    string
	Days       int // Days with a return value
	Cumulative string
	Volatility string
	Best       string
	BestDate   string
	Worst      string
	WorstDate  string
}

type reportData struct {
	InitialDate string
	FinalDate   string
	Instruments []instrumentSummary
	Count       int
	HasDetails  bool
}

func renderTemplate(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s body: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// formatPercent renders a percent figure with two decimals, e.g. 1.23%.
func formatPercent(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "N/D"
	}
	return fmt.Sprintf("%.2f%%", v)
}
