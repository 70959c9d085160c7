package adminhttp

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"haru/internal/logger"
	"haru/internal/strategy"

	"github.com/gin-gonic/gin"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

// handleChart renders daily closes with the short and long moving averages
// overlaid, so the entry rules can be eyeballed against recent price action.
func (r *Router) handleChart(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	cfg, ok := r.Strategies.Snapshot().Strategies[symbol]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown symbol"})
		return
	}
	days, _ := strconv.Atoi(c.DefaultQuery("days", "120"))
	if days <= 0 {
		days = 120
	}
	closes, err := r.Market.DailyCloses(c.Request.Context(), symbol, cfg.Exchange, days)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if len(closes) == 0 {
		c.JSON(http.StatusBadGateway, gin.H{"error": "no price history"})
		return
	}

	line := buildCloseChart(symbol, closes, cfg)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := line.Render(c.Writer); err != nil {
		logger.Warnf("chart render failed for %s: %v", symbol, err)
	}
}

func buildCloseChart(symbol string, recentFirstCloses []float64, cfg strategy.Config) *charts.Line {
	// Oldest first for plotting.
	n := len(recentFirstCloses)
	closes := make([]float64, n)
	for i, v := range recentFirstCloses {
		closes[n-1-i] = v
	}

	xAxis := make([]string, n)
	closeData := make([]opts.LineData, n)
	smaShortData := make([]opts.LineData, n)
	smaLongData := make([]opts.LineData, n)
	for i := 0; i < n; i++ {
		xAxis[i] = strconv.Itoa(i - n + 1) // days relative to today
		closeData[i] = opts.LineData{Value: round2(closes[i])}
		smaShortData[i] = windowAverage(recentFirstCloses, n-1-i, smaShortWindowChart)
		smaLongData[i] = windowAverage(recentFirstCloses, n-1-i, cfg.LongTrendWindow)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:  types.ThemeWesteros,
			Width:  "1200px",
			Height: "520px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    symbol,
			Subtitle: "daily closes with moving averages",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
	)
	line.SetXAxis(xAxis)
	line.AddSeries("Close", closeData)
	line.AddSeries("SMA20", smaShortData,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	if cfg.LongTrendWindow > 0 {
		line.AddSeries("SMA"+strconv.Itoa(cfg.LongTrendWindow), smaLongData,
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	}
	return line
}

const smaShortWindowChart = 20

// windowAverage computes the SMA at one offset of the recent-first series,
// yielding a nil point where the window does not fit.
func windowAverage(recentFirst []float64, offset, window int) opts.LineData {
	if window <= 0 || offset+window > len(recentFirst) {
		return opts.LineData{Value: nil}
	}
	v := strategy.SMA(recentFirst[offset:], window)
	if v == 0 {
		return opts.LineData{Value: nil}
	}
	return opts.LineData{Value: round2(v)}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
