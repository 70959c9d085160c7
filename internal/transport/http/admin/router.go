package adminhttp

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"haru/internal/analysis/indicator"
	"haru/internal/ledger"
	"haru/internal/logger"
	"haru/internal/runner"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"
)

// Router holds the handlers' dependencies.
type Router struct {
	Runner     *runner.Runner
	Strategies runner.StrategySource
	Market     runner.MarketData
	Trailing   *ledger.TrailingLedger
	Cooldowns  *ledger.CooldownLedger
	Trades     *ledger.TradeLog
}

// Register mounts the API routes under the given group.
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/status", r.handleStatus)
	group.POST("/run", r.handleRun)
	group.POST("/enable", r.handleEnable)
	group.POST("/disable", r.handleDisable)
	group.GET("/trades", r.handleTrades)
	group.GET("/strategies", r.handleStrategies)
	group.GET("/ledgers/trailing", r.handleTrailing)
	group.GET("/ledgers/cooldowns", r.handleCooldowns)
	group.DELETE("/ledgers/cooldowns/:symbol", r.handleCooldownClear)
	group.GET("/indicators/:symbol", r.handleIndicators)
}

func (r *Router) handleStatus(c *gin.Context) {
	snap := r.Strategies.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"enabled":            r.Runner.Enabled(),
		"strategies":         len(snap.Strategies),
		"strategies_version": snap.Version,
		"strategies_loaded":  snap.LoadedAt,
		"last_run":           r.Runner.LastSummary(),
	})
}

// handleRun triggers one run synchronously. 409 when a run is already in
// flight or trading is disabled.
func (r *Router) handleRun(c *gin.Context) {
	logger.Infof("[api] manual run triggered ip=%s", c.ClientIP())
	summary, err := r.Runner.RunOnce(c.Request.Context())
	if err != nil {
		if errors.Is(err, runner.ErrRunInFlight) || errors.Is(err, runner.ErrDisabled) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "summary": summary})
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

func (r *Router) handleEnable(c *gin.Context) {
	r.Runner.Enable()
	logger.Infof("[api] trading enabled ip=%s", c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"enabled": true})
}

func (r *Router) handleDisable(c *gin.Context) {
	r.Runner.Disable()
	logger.Infof("[api] trading disabled ip=%s", c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"enabled": false})
}

func (r *Router) handleTrades(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 {
		limit = 50
	}
	if limit > ledger.MaxTradeRecords {
		limit = ledger.MaxTradeRecords
	}
	records, err := r.Trades.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": records})
}

// handleStrategies dumps the active snapshot as YAML, matching the shape of
// the file it was loaded from.
func (r *Router) handleStrategies(c *gin.Context) {
	snap := r.Strategies.Snapshot()
	out, err := yaml.Marshal(map[string]any{"strategies": snap.Strategies})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/yaml", out)
}

func (r *Router) handleTrailing(c *gin.Context) {
	records, err := r.Trailing.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trailing": records})
}

func (r *Router) handleCooldowns(c *gin.Context) {
	records, err := r.Cooldowns.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cooldowns": records})
}

// handleCooldownClear lifts a cooldown ahead of schedule.
func (r *Router) handleCooldownClear(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol required"})
		return
	}
	if err := r.Cooldowns.Clear(c.Request.Context(), symbol); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[api] cooldown cleared ip=%s symbol=%s", c.ClientIP(), symbol)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "symbol": symbol})
}

func (r *Router) handleIndicators(c *gin.Context) {
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
	rep, err := indicator.ComputeAll(closes, indicator.Settings{
		Symbol:   symbol,
		SMAShort: 20,
		SMALong:  cfg.LongTrendWindow,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rep)
}
