// Package report turns normalized engine output into the notification payload.
package report

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/aristath/market-reports/internal/domain"
	"github.com/aristath/market-reports/pkg/formulas"
	"github.com/rs/zerolog"
)

// DateColumn is the X axis of every chart
const DateColumn = "Date"

// DefaultSMAPeriod is the moving-average window drawn over daily returns
const DefaultSMAPeriod = 3

// Input names the files and period of one report
type Input struct {
	DailyReturnsPath  string
	AverageReturnPath string
	InitialDate       string // yyyy-mm-dd
	FinalDate         string // yyyy-mm-dd
	WorkDir           string // Charts are written here
}

// Synthesizer builds report payloads
type Synthesizer struct {
	instruments  []Instrument
	smaPeriod    int
	chartLibrary []byte // echarts script inlined into charts; nil renders static SVG
	log          zerolog.Logger
}

// NewSynthesizer creates a synthesizer for the given instruments
func NewSynthesizer(instruments []Instrument, smaPeriod int, log zerolog.Logger) *Synthesizer {
	return &Synthesizer{
		instruments: instruments,
		smaPeriod:   smaPeriod,
		log:         log.With().Str("module", "report_synthesizer").Logger(),
	}
}

// SetChartLibrary makes charts interactive echarts pages carrying script
// inline. Without it charts are static SVG figures.
func (s *Synthesizer) SetChartLibrary(script []byte) {
	s.chartLibrary = script
}

// Synthesize builds the report. Zero daily rows produce the no-data variant
// without attachments; otherwise one chart per instrument is rendered into
// WorkDir and attached.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input) (*domain.ReportPayload, error) {
	period := periodData{
		InitialDate: domain.FormatDisplayDate(in.InitialDate),
		FinalDate:   domain.FormatDisplayDate(in.FinalDate),
	}

	daily, err := LoadTable(in.DailyReturnsPath)
	if err != nil {
		return nil, domain.NewError(domain.KindIntegrity, "report.load", "failed to load daily returns", err)
	}

	if daily.Len() == 0 {
		s.log.Info().
			Str("initial_date", in.InitialDate).
			Str("final_date", in.FinalDate).
			Msg("No records in period, building no-data report")

		body, err := renderTemplate(noDataTemplate, period)
		if err != nil {
			return nil, err
		}
		return &domain.ReportPayload{
			Subject:  SubjectNoData,
			HTMLBody: body,
			NoData:   true,
		}, nil
	}

	averages, err := s.loadAverages(in.AverageReturnPath)
	if err != nil {
		return nil, err
	}

	dates, err := daily.Strings(DateColumn)
	if err != nil {
		return nil, domain.NewError(domain.KindChart, "report.chart", "daily returns have no date axis", err)
	}

	if err := os.MkdirAll(in.WorkDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create chart directory: %w", err)
	}

	data := reportData{
		InitialDate: period.InitialDate,
		FinalDate:   period.FinalDate,
		Count:       daily.Len(),
	}
	var attachments []string

	for i, inst := range s.instruments {
		returns, err := daily.Floats(inst.ReturnColumn)
		if err != nil {
			return nil, domain.NewError(domain.KindChart, "report.chart",
				fmt.Sprintf("cannot chart %s", inst.ReturnColumn), err)
		}

		chartPath := filepath.Join(in.WorkDir, inst.ChartFile)
		chart := lineChart{
			Title:     inst.ChartTitle,
			XLabel:    DateColumn,
			YLabel:    inst.ReturnColumn,
			X:         dates,
			Y:         returns,
			SMAPeriod: s.smaPeriod,
		}
		if err := chart.render(chartPath, s.chartLibrary); err != nil {
			return nil, domain.NewError(domain.KindChart, "report.chart",
				fmt.Sprintf("failed to render %s", inst.ChartFile), err)
		}
		attachments = append(attachments, chartPath)

		summary := summarize(inst, averages[i], dates, returns)
		if summary.Days > 0 {
			data.HasDetails = true
		}
		data.Instruments = append(data.Instruments, summary)
	}

	body, err := renderTemplate(reportTemplate, data)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int("records", data.Count).
		Int("charts", len(attachments)).
		Msg("Report synthesized")

	return &domain.ReportPayload{
		Subject:     SubjectReport,
		HTMLBody:    body,
		Attachments: attachments,
		Records:     data.Count,
	}, nil
}

// loadAverages reads the first row of the averages table, one value per instrument
func (s *Synthesizer) loadAverages(path string) ([]float64, error) {
	table, err := LoadTable(path)
	if err != nil {
		return nil, domain.NewError(domain.KindIntegrity, "report.load", "failed to load average returns", err)
	}
	if table.Len() == 0 {
		return nil, domain.Errorf(domain.KindIntegrity, "report.load", "average returns table is empty")
	}

	out := make([]float64, len(s.instruments))
	for i, inst := range s.instruments {
		values, err := table.Floats(inst.AverageColumn)
		if err != nil {
			return nil, domain.NewError(domain.KindIntegrity, "report.load", "malformed average returns", err)
		}
		out[i] = values[0]
	}
	return out, nil
}

func summarize(inst Instrument, average float64, dates []string, returns []float64) instrumentSummary {
	summary := instrumentSummary{
		Label:   inst.Label,
		Average: formatPercent(average),
	}

	var values []float64
	var days []string
	for i, r := range returns {
		if !math.IsNaN(r) {
			values = append(values, r)
			days = append(days, dates[i])
		}
	}
	if len(values) == 0 {
		return summary
	}

	worst, worstIdx, best, bestIdx := formulas.MinMax(values)
	summary.Days = len(values)
	summary.Cumulative = formatPercent(formulas.CompoundPercent(values))
	summary.Volatility = formatPercent(formulas.StdDev(values))
	summary.Best = formatPercent(best)
	summary.BestDate = domain.FormatDisplayDate(days[bestIdx])
	summary.Worst = formatPercent(worst)
	summary.WorstDate = domain.FormatDisplayDate(days[worstIdx])
	return summary
}
