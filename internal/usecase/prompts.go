package usecase

import (
	"bytes"
	"fmt"
	"text/template"

	"StockForecaster/internal/domain/models"
)

const noUnusualActivity = "No unusual activity detected"

var predictionTmpl = template.Must(template.New("prediction").Parse(`
Analyze the following options data for {{.Ticker}} and provide a prediction:

CURRENT PRICE: ${{.CurrentPrice}}
DATE: {{.Date}}

OPTIONS METRICS:
- Put/Call Ratio: {{.M.PutCallRatio}}
- IV Rank: {{.M.IVRank}}%
- IV Percentile: {{.M.IVPercentile}}%
- Total Volume: {{.M.TotalVolume}}
- Open Interest: {{.M.OpenInterest}}

TOP UNUSUAL OPTIONS ACTIVITY:
{{.UnusualActivity}}

GREEKS SUMMARY:
- Net Delta: {{.M.NetDelta}}
- Net Gamma: {{.M.NetGamma}}
- Gamma Exposure: ${{.M.GammaExposure}}

VOLATILITY ANALYSIS:
- 30-day IV: {{.M.IV30}}%
- IV Skew: {{.M.IVSkew}}
- Term Structure: {{.M.TermStructure}}

Based on this data, provide:
1. Direction prediction (bullish/bearish/neutral)
2. Price target for {{.Timeframe}}
3. Confidence level (1-10)
4. Key reasoning points
5. Risk factors

Format as JSON with the following structure:
{
    "direction": "bullish|bearish|neutral",
    "price_target": float,
    "confidence": integer (1-10),
    "reasoning": ["reason1", "reason2", ...],
    "risk_factors": ["risk1", "risk2", ...]
}
`))

var analysisTmpl = template.Must(template.New("analysis").Parse(`
Analyze the {{.AnalysisType}} data for {{.Ticker}}:

{{.DataSection}}

Provide a comprehensive analysis including:
1. Key observations
2. Market implications
3. Trading recommendations
4. Risk considerations

Format the response as JSON with clear structure.
`))

type predictionPrompt struct {
	Ticker          string
	CurrentPrice    float64
	Date            string
	Timeframe       models.Timeframe
	UnusualActivity string
	M               models.OptionsMetrics
}

type analysisPrompt struct {
	AnalysisType models.AnalysisType
	Ticker       string
	DataSection  string
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", t.Name(), err)
	}
	return buf.String(), nil
}
