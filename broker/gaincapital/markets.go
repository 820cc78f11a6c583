package gaincapital

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/rustyeddy/fxtrader/fxerr"
	"github.com/rustyeddy/fxtrader/market"
)

type marketsResponse struct {
	Markets []struct {
		MarketID int64  `json:"MarketId"`
		Name     string `json:"Name"`
	} `json:"Markets"`
}

type apiBar struct {
	BarDate string  `json:"BarDate"`
	Open    float64 `json:"Open"`
	High    float64 `json:"High"`
	Low     float64 `json:"Low"`
	Close   float64 `json:"Close"`
}

type barHistoryResponse struct {
	PriceBars       []apiBar `json:"PriceBars"`
	PartialPriceBar *apiBar  `json:"PartialPriceBar"`
}

type tickHistoryResponse struct {
	PriceTicks []struct {
		TickDate string  `json:"TickDate"`
		Price    float64 `json:"Price"`
	} `json:"PriceTicks"`
}

// MarketID resolves a symbol to the broker's market id. Ids are cached for
// the life of the session.
func (c *Client) MarketID(ctx context.Context, symbol string) (int64, error) {
	const op = "gaincapital.MarketID"

	c.mu.Lock()
	id, ok := c.markets[symbol]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	q := url.Values{}
	q.Set("MarketName", symbol)
	q.Set("MaxResults", "10")

	var mr marketsResponse
	if err := c.do(ctx, http.MethodGet, "/cfd/markets", q, nil, &mr); err != nil {
		return 0, fxerr.E(op, fxerr.Broker, fmt.Errorf("%s: %w", symbol, err))
	}
	for _, m := range mr.Markets {
		if strings.EqualFold(m.Name, symbol) {
			c.mu.Lock()
			c.markets[symbol] = m.MarketID
			c.mu.Unlock()
			return m.MarketID, nil
		}
	}
	return 0, fxerr.Errorf(op, fxerr.Broker, "no market named %q", symbol)
}

// OHLC fetches completed bars per symbol. A symbol that fails is logged and
// left out of the result; the call only errors when every symbol failed.
func (c *Client) OHLC(ctx context.Context, symbols []string, interval string, count, span int) (map[string][]market.Bar, error) {
	const op = "gaincapital.OHLC"

	if count <= 0 {
		return nil, fxerr.Errorf(op, fxerr.DataAcquisition, "bar count %d must be positive", count)
	}

	out := make(map[string][]market.Bar, len(symbols))
	var lastErr error
	for _, symbol := range symbols {
		id, err := c.MarketID(ctx, symbol)
		if err != nil {
			lastErr = err
			c.log.Warn("market id lookup failed", zap.String("symbol", symbol), zap.Error(err))
			continue
		}

		q := url.Values{}
		q.Set("interval", strings.ToUpper(interval))
		q.Set("span", strconv.Itoa(span))
		q.Set("PriceBars", strconv.Itoa(count))

		var br barHistoryResponse
		if err := c.do(ctx, http.MethodGet, "/market/"+strconv.FormatInt(id, 10)+"/barhistory", q, nil, &br); err != nil {
			lastErr = err
			c.log.Warn("bar history failed", zap.String("symbol", symbol), zap.Error(err))
			continue
		}

		bars := make([]market.Bar, 0, len(br.PriceBars))
		for _, b := range br.PriceBars {
			bars = append(bars, market.Bar{Date: b.BarDate, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close})
		}
		out[symbol] = bars
	}

	if len(out) == 0 && lastErr != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fxerr.E(op, fxerr.DataAcquisition, lastErr)
	}
	return out, nil
}

// Prices returns the latest tick per symbol. The API quotes a single price
// so Bid and Ask are equal.
func (c *Client) Prices(ctx context.Context, symbols []string) (map[string]market.Tick, error) {
	const op = "gaincapital.Prices"

	out := make(map[string]market.Tick, len(symbols))
	for _, symbol := range symbols {
		id, err := c.MarketID(ctx, symbol)
		if err != nil {
			return nil, fxerr.E(op, fxerr.Broker, err)
		}

		q := url.Values{}
		q.Set("PriceTicks", "1")

		var tr tickHistoryResponse
		if err := c.do(ctx, http.MethodGet, "/market/"+strconv.FormatInt(id, 10)+"/tickhistory", q, nil, &tr); err != nil {
			return nil, fxerr.E(op, fxerr.Broker, fmt.Errorf("%s: %w", symbol, err))
		}
		if len(tr.PriceTicks) == 0 {
			return nil, fxerr.Errorf(op, fxerr.Broker, "%s: no ticks", symbol)
		}

		last := tr.PriceTicks[len(tr.PriceTicks)-1]
		tick := market.Tick{Symbol: symbol, Bid: last.Price, Ask: last.Price}
		if ts, err := market.ParseBarDate(last.TickDate); err == nil {
			tick.Time = timeFromUnix(ts)
		}
		out[symbol] = tick
	}
	return out, nil
}
