package report

// Instrument describes one asset in the report
type Instrument struct {
	Label         string // Shown in the email body
	ReturnColumn  string // Daily percent return in daily_returns
	AverageColumn string // Mean percent return in average_daily_return
	ChartTitle    string
	ChartFile     string
}

// DefaultInstruments are the assets produced by the market analysis script
var DefaultInstruments = []Instrument{
	{
		Label:         "USD/BRL (BRL=X)",
		ReturnColumn:  "DOLAR_Retorno",
		AverageColumn: "Media_DOLAR_Retorno",
		ChartTitle:    "Dólar - Retornos Diários",
		ChartFile:     "dolar_daily_returns.html",
	},
	{
		Label:         "S&P 500 (^GSPC)",
		ReturnColumn:  "S&P500_Retorno",
		AverageColumn: "Media_SP500_Retorno",
		ChartTitle:    "S&P500 - Retornos Diários",
		ChartFile:     "sp500_daily_returns.html",
	},
}
