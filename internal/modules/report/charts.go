package report

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/aristath/market-reports/pkg/formulas"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// lineChart is one time series rendered to a standalone HTML page
type lineChart struct {
	Title     string
	XLabel    string
	YLabel    string
	X         []string
	Y         []float64 // NaN marks a missing point
	SMAPeriod int       // Overlay a moving average when > 1 and enough points exist
}

// render writes the chart to path. The page never references remote
// resources: with a chart library it is an interactive echarts page carrying
// the library inline, without one it is a static SVG figure.
func (c lineChart) render(path string, library []byte) error {
	if len(c.X) == 0 {
		return fmt.Errorf("no data points for %q", c.Title)
	}
	if len(c.X) != len(c.Y) {
		return fmt.Errorf("axis length mismatch for %q: %d dates, %d values", c.Title, len(c.X), len(c.Y))
	}

	var (
		page []byte
		err  error
	)
	if len(library) > 0 {
		page, err = c.interactivePage(library)
	} else {
		page, err = c.staticPage()
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, page, 0644)
}

// echartsScriptTag matches the library reference go-echarts writes in the page header
var echartsScriptTag = regexp.MustCompile(`<script src="[^"]*echarts\.min\.js"></script>`)

func (c lineChart) interactivePage(library []byte) ([]byte, error) {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: c.Title,
			Width:     "1000px",
			Height:    "520px",
		}),
		charts.WithTitleOpts(opts.Title{Title: c.Title}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			Name:      c.XLabel,
			AxisLabel: &opts.AxisLabel{Rotate: 45},
		}),
		charts.WithYAxisOpts(opts.YAxis{Name: c.YLabel}),
	)

	line.SetXAxis(c.X).
		AddSeries(c.YLabel, lineData(c.Y),
			charts.WithLineStyleOpts(opts.LineStyle{Color: returnColor, Width: 2}))

	if overlay := c.movingAverage(); overlay != nil {
		line.AddSeries(c.smaLabel(), lineData(overlay),
			charts.WithLineStyleOpts(opts.LineStyle{Color: smaColor, Width: 1, Type: "dashed"}))
	}

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return nil, err
	}
	return inlineLibrary(buf.Bytes(), library)
}

// inlineLibrary replaces the library reference with an inline script
func inlineLibrary(page, library []byte) ([]byte, error) {
	if !echartsScriptTag.Match(page) {
		return nil, fmt.Errorf("chart page has no library reference to inline")
	}

	// A literal "</script" inside the library would end the inline block early
	safe := bytes.ReplaceAll(library, []byte("</script"), []byte(`<\/script`))

	var inline bytes.Buffer
	inline.WriteString("<script>\n")
	inline.Write(safe)
	inline.WriteString("\n</script>")
	return echartsScriptTag.ReplaceAllLiteral(page, inline.Bytes()), nil
}

// movingAverage computes the SMA over the non-missing points and maps it back
// onto the full axis. Returns nil when there are too few points.
func (c lineChart) movingAverage() []float64 {
	if c.SMAPeriod <= 1 {
		return nil
	}

	var values []float64
	var positions []int
	for i, v := range c.Y {
		if !math.IsNaN(v) {
			values = append(values, v)
			positions = append(positions, i)
		}
	}

	sma := formulas.SMASeries(values, c.SMAPeriod)
	if sma == nil {
		return nil
	}

	out := make([]float64, len(c.Y))
	for i := range out {
		out[i] = math.NaN()
	}
	for j, pos := range positions {
		out[pos] = sma[j]
	}
	return out
}

func (c lineChart) smaLabel() string {
	return fmt.Sprintf("Média móvel (%d)", c.SMAPeriod)
}

// lineData converts values to chart points; "-" is the chart library's
// marker for a missing value.
func lineData(values []float64) []opts.LineData {
	items := make([]opts.LineData, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			items[i] = opts.LineData{Value: "-"}
			continue
		}
		items[i] = opts.LineData{Value: math.Round(v*1e6) / 1e6}
	}
	return items
}

const (
	returnColor = "#1f77b4"
	smaColor    = "#ff7f0e"
)

// Static figure geometry, in SVG user units
const (
	svgWidth       = 1000
	svgHeight      = 520
	svgLeft        = 70
	svgRight       = 20
	svgTop         = 30
	svgBottom      = 90
	svgYTicks      = 6
	svgMaxXLabels  = 12
	svgLabelOffset = 12
)

type svgTick struct {
	X, Y  float64
	Label string
}

type svgSeries struct {
	Label    string
	Color    string
	Dash     string
	Segments []string // polyline point lists, split at missing values
}

type svgFigure struct {
	Title                  string
	XLabel, YLabel         string
	Width, Height          int
	Left, Top, Right, Base float64
	ZeroY                  float64
	ShowZero               bool
	YTicks                 []svgTick
	XTicks                 []svgTick
	Series                 []svgSeries
	LegendY                []float64
}

var staticChartTemplate = template.Must(template.New("static_chart").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>{{.Title}}</title>
</head>
<body style="font-family: sans-serif; margin: 16px;">
<svg xmlns="http://www.w3.org/2000/svg" width="{{.Width}}" height="{{.Height}}" viewBox="0 0 {{.Width}} {{.Height}}">
    <text x="{{.Left}}" y="18" font-size="16" font-weight="bold">{{.Title}}</text>
    {{- range .YTicks}}
    <line x1="{{$.Left}}" y1="{{.Y}}" x2="{{$.Right}}" y2="{{.Y}}" stroke="#e0e0e0"/>
    <text x="{{.X}}" y="{{.Y}}" font-size="11" text-anchor="end" dominant-baseline="middle">{{.Label}}</text>
    {{- end}}
    {{- if .ShowZero}}
    <line x1="{{.Left}}" y1="{{.ZeroY}}" x2="{{.Right}}" y2="{{.ZeroY}}" stroke="#888888"/>
    {{- end}}
    <line x1="{{.Left}}" y1="{{.Top}}" x2="{{.Left}}" y2="{{.Base}}" stroke="#333333"/>
    <line x1="{{.Left}}" y1="{{.Base}}" x2="{{.Right}}" y2="{{.Base}}" stroke="#333333"/>
    {{- range .XTicks}}
    <text x="{{.X}}" y="{{.Y}}" font-size="11" text-anchor="end" transform="rotate(-45 {{.X}} {{.Y}})">{{.Label}}</text>
    {{- end}}
    {{- range .Series}}
    {{- $s := .}}
    {{- range .Segments}}
    <polyline fill="none" stroke="{{$s.Color}}" stroke-width="2" stroke-dasharray="{{$s.Dash}}" points="{{.}}"/>
    {{- end}}
    {{- end}}
    {{- range $i, $s := .Series}}
    <text x="{{$.Right}}" y="{{index $.LegendY $i}}" font-size="12" text-anchor="end" fill="{{$s.Color}}">{{$s.Label}}</text>
    {{- end}}
    <text x="{{.Left}}" y="{{.Top}}" dy="-4" font-size="11">{{.YLabel}}</text>
    <text x="{{.Right}}" y="{{.Height}}" dy="-6" font-size="11" text-anchor="end">{{.XLabel}}</text>
</svg>
</body>
</html>
`))

func (c lineChart) staticPage() ([]byte, error) {
	fig := c.figure()

	var buf bytes.Buffer
	if err := staticChartTemplate.Execute(&buf, fig); err != nil {
		return nil, fmt.Errorf("failed to render static chart: %w", err)
	}
	return buf.Bytes(), nil
}

type plotSeries struct {
	label, color, dash string
	values             []float64
}

func (c lineChart) figure() svgFigure {
	series := []plotSeries{{c.YLabel, returnColor, "", c.Y}}
	if overlay := c.movingAverage(); overlay != nil {
		series = append(series, plotSeries{c.smaLabel(), smaColor, "6 4", overlay})
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for _, v := range s.values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 1) {
		lo, hi = -1, 1
	}
	if hi-lo < 1e-9 {
		lo, hi = lo-1, hi+1
	}

	left, right := float64(svgLeft), float64(svgWidth-svgRight)
	top, base := float64(svgTop), float64(svgHeight-svgBottom)

	xAt := func(i int) float64 {
		if len(c.X) == 1 {
			return (left + right) / 2
		}
		return left + (right-left)*float64(i)/float64(len(c.X)-1)
	}
	yAt := func(v float64) float64 {
		return base - (base-top)*(v-lo)/(hi-lo)
	}

	fig := svgFigure{
		Title:  c.Title,
		XLabel: c.XLabel,
		YLabel: c.YLabel,
		Width:  svgWidth,
		Height: svgHeight,
		Left:   left,
		Top:    top,
		Right:  right,
		Base:   base,
	}

	if lo < 0 && hi > 0 {
		fig.ShowZero = true
		fig.ZeroY = round2(yAt(0))
	}

	for i := 0; i <= svgYTicks; i++ {
		v := lo + (hi-lo)*float64(i)/svgYTicks
		fig.YTicks = append(fig.YTicks, svgTick{
			X:     left - 6,
			Y:     round2(yAt(v)),
			Label: strconv.FormatFloat(v, 'f', 2, 64),
		})
	}

	step := (len(c.X) + svgMaxXLabels - 1) / svgMaxXLabels
	for i := 0; i < len(c.X); i += step {
		fig.XTicks = append(fig.XTicks, svgTick{
			X:     round2(xAt(i)),
			Y:     base + svgLabelOffset,
			Label: c.X[i],
		})
	}

	for i, s := range series {
		var segments []string
		var points []string
		for j, v := range s.values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				if len(points) > 0 {
					segments = append(segments, strings.Join(points, " "))
					points = nil
				}
				continue
			}
			points = append(points, fmt.Sprintf("%.2f,%.2f", xAt(j), yAt(v)))
		}
		if len(points) > 0 {
			segments = append(segments, strings.Join(points, " "))
		}

		fig.Series = append(fig.Series, svgSeries{
			Label:    s.label,
			Color:    s.color,
			Dash:     s.dash,
			Segments: segments,
		})
		fig.LegendY = append(fig.LegendY, top+14*float64(i+1))
	}

	return fig
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
