package report

import (
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const chartHeight = "400px"

// RenderOutcomeBar writes a minimal OK-vs-ERRO bar chart for one run's
// report export, so a reviewer can eyeball reconciliation health without
// opening the CSV. Grounded on the teacher's go-echarts usage in
// internal/analyzers/quality/plot.go and internal/analyzers/devs/dashboard_workload.go,
// simplified to a direct charts.Bar call (no plotpage wrapper).
func RenderOutcomeBar(w io.Writer, runID string, okCount, erroCount int) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: "Reconciliation outcome", Subtitle: "run " + runID}),
		charts.WithXAxisOpts(opts.XAxis{Name: "outcome"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "instances"}),
	)

	bar.SetXAxis([]string{"OK", "ERRO"}).AddSeries("instances", []opts.BarData{
		{Value: okCount},
		{Value: erroCount},
	})

	return bar.Render(w)
}
