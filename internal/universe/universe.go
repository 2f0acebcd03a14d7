package universe

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"okx-stoch-sentry/internal/fetcher"
	"okx-stoch-sentry/pkg/types"
)

// MarketLister 交易产品与24小时行情数据源
type MarketLister interface {
	Instruments(ctx context.Context, instType string) ([]fetcher.Instrument, error)
	Tickers(ctx context.Context, instType string) ([]fetcher.Ticker, error)
}

// Resolver 确定本次运行要监控的交易对
type Resolver struct {
	lister MarketLister
	config types.UniverseConfig
	now    func() time.Time
}

// NewResolver 创建交易对解析器
func NewResolver(lister MarketLister, config types.UniverseConfig) *Resolver {
	return &Resolver{
		lister: lister,
		config: config,
		now:    time.Now,
	}
}

type rankedSymbol struct {
	symbol string
	value  float64
}

// TopByVolume 按24小时成交额取前n个交易对
// 只保留 live 状态、以quote结算、上线时间早于 now-min_listing_age 的产品
// 成交额 = volCcy24h × (open24h + last) / 2
func (r *Resolver) TopByVolume(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	instruments, err := r.lister.Instruments(ctx, r.config.InstType)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	tickers, err := r.lister.Tickers(ctx, r.config.InstType)
	if err != nil {
		return nil, fmt.Errorf("list tickers: %w", err)
	}

	tickerByID := make(map[string]fetcher.Ticker, len(tickers))
	for _, t := range tickers {
		tickerByID[t.InstID] = t
	}

	cutoff := r.now().Add(-r.config.MinListingAge)
	ranked := make([]rankedSymbol, 0, len(instruments))
	for _, inst := range instruments {
		if inst.State != "live" || !r.matchesQuote(inst) {
			continue
		}

		listMillis, err := strconv.ParseInt(inst.ListTime, 10, 64)
		if err != nil || !time.UnixMilli(listMillis).Before(cutoff) {
			continue
		}

		ticker, ok := tickerByID[inst.InstID]
		if !ok {
			continue
		}
		value, ok := tradedValue(ticker)
		if !ok {
			continue
		}
		ranked = append(ranked, rankedSymbol{symbol: inst.InstID, value: value})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].value > ranked[j].value
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}

	symbols := make([]string, 0, len(ranked))
	for _, item := range ranked {
		symbols = append(symbols, item.symbol)
	}
	return symbols, nil
}

func (r *Resolver) matchesQuote(inst fetcher.Instrument) bool {
	if inst.SettleCcy != "" {
		return inst.SettleCcy == r.config.Quote
	}
	// 现货没有结算币种，按交易对后缀判断
	return strings.HasSuffix(inst.InstID, "-"+r.config.Quote)
}

func tradedValue(t fetcher.Ticker) (float64, bool) {
	volume, err := strconv.ParseFloat(t.VolCcy24h, 64)
	if err != nil {
		return 0, false
	}
	last, err := strconv.ParseFloat(t.Last, 64)
	if err != nil {
		return 0, false
	}
	open, err := strconv.ParseFloat(t.Open24h, 64)
	if err != nil {
		return 0, false
	}
	return volume * (open + last) / 2, true
}

// Resolve 合并成交额排名与本地自选列表，去重后排序
// 任一来源失败只记录日志，不影响另一来源
func (r *Resolver) Resolve(ctx context.Context) []string {
	var symbols []string

	top, err := r.TopByVolume(ctx, r.config.TopN)
	if err != nil {
		zap.L().Error("❌ 获取成交额排名失败", zap.Error(err))
	} else {
		zap.L().Info("📊 获取到成交额排名交易对", zap.Int("count", len(top)), zap.Strings("symbols", top))
		symbols = append(symbols, top...)
	}

	if r.config.SymbolsFile != "" {
		custom, err := LoadLines(r.config.SymbolsFile)
		if err != nil {
			zap.L().Warn("⚠️ 读取自选交易对文件失败", zap.String("file", r.config.SymbolsFile), zap.Error(err))
		} else {
			zap.L().Info("📄 从配置文件读取自选交易对", zap.Int("count", len(custom)))
			symbols = append(symbols, custom...)
		}
	}

	return Merge(symbols)
}

// Merge 去重并排序
func Merge(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	result := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		result = append(result, s)
	}
	sort.Strings(result)
	return result
}

// LoadLines 读取每行一个条目的文本文件，忽略空行和首尾空白
func LoadLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s not found: %w", path, err)
		}
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}
