package gaincapital

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/fxtrader/broker"
	"github.com/rustyeddy/fxtrader/fxerr"
	"github.com/rustyeddy/fxtrader/internal/id"
)

// instructionAccepted is the trade-order response status for an order the
// API took.
const instructionAccepted = 1

type newTradeOrderRequest struct {
	MarketID         int64   `json:"MarketId"`
	Direction        string  `json:"Direction"`
	Quantity         int     `json:"Quantity"`
	BidPrice         float64 `json:"BidPrice"`
	OfferPrice       float64 `json:"OfferPrice"`
	PriceTolerance   float64 `json:"PriceTolerance"`
	TradingAccountID int64   `json:"TradingAccountId"`
	Reference        string  `json:"Reference"`
}

type newTradeOrderResponse struct {
	OrderID      int64 `json:"OrderId"`
	Status       int   `json:"Status"`
	StatusReason int   `json:"StatusReason"`
}

type apiPosition struct {
	OrderID    int64   `json:"OrderId"`
	MarketName string  `json:"MarketName"`
	Direction  string  `json:"Direction"`
	Quantity   float64 `json:"Quantity"`
	Price      float64 `json:"Price"`
}

type openPositionsResponse struct {
	OpenPositions []apiPosition `json:"OpenPositions"`
}

type activeOrdersRequest struct {
	TradingAccountID int64 `json:"TradingAccountId"`
	MaxResults       int   `json:"MaxResults"`
}

type activeOrdersResponse struct {
	ActiveOrders []struct {
		TradeOrder *struct {
			OrderID    int64   `json:"OrderId"`
			MarketName string  `json:"MarketName"`
			Direction  string  `json:"Direction"`
			Quantity   float64 `json:"Quantity"`
			StatusID   int     `json:"StatusId"`
		} `json:"TradeOrder"`
	} `json:"ActiveOrders"`
}

type cancelOrderRequest struct {
	OrderID          int64 `json:"OrderId"`
	TradingAccountID int64 `json:"TradingAccountId"`
}

type marginResponse struct {
	NetEquity float64 `json:"NetEquity"`
	Margin    float64 `json:"Margin"`
}

// TradeMarketOrder places the intents in symbol order. Symbols whose order
// could not be placed are returned; the error is reserved for failures that
// stop the whole batch.
func (c *Client) TradeMarketOrder(ctx context.Context, intents []broker.TradeIntent) ([]string, error) {
	const op = "gaincapital.TradeMarketOrder"

	accountID, err := c.authenticated()
	if err != nil {
		return nil, fxerr.E(op, fxerr.Broker, err)
	}

	sorted := slices.Clone(intents)
	slices.SortFunc(sorted, func(a, b broker.TradeIntent) int { return strings.Compare(a.Symbol, b.Symbol) })

	var failed []string
	for _, ti := range sorted {
		if err := ctx.Err(); err != nil {
			return failed, err
		}
		if err := c.placeOrder(ctx, accountID, ti); err != nil {
			c.log.Warn("order not placed", zap.Stringer("intent", ti), zap.Error(err))
			failed = append(failed, ti.Symbol)
			continue
		}
		c.log.Info("order placed", zap.Stringer("intent", ti))
	}
	return failed, nil
}

func (c *Client) placeOrder(ctx context.Context, accountID int64, ti broker.TradeIntent) error {
	if !ti.Direction.Valid() || ti.Quantity <= 0 {
		return fmt.Errorf("invalid intent %s", ti)
	}
	marketID, err := c.MarketID(ctx, ti.Symbol)
	if err != nil {
		return err
	}
	prices, err := c.Prices(ctx, []string{ti.Symbol})
	if err != nil {
		return err
	}
	tick := prices[ti.Symbol]

	var resp newTradeOrderResponse
	err = c.do(ctx, http.MethodPost, "/order/newtradeorder", nil, newTradeOrderRequest{
		MarketID:         marketID,
		Direction:        string(ti.Direction),
		Quantity:         ti.Quantity,
		BidPrice:         tick.Bid,
		OfferPrice:       tick.Ask,
		TradingAccountID: accountID,
		Reference:        "FX-" + id.Short(),
	}, &resp)
	if err != nil {
		return err
	}
	if resp.OrderID == 0 || resp.Status != instructionAccepted {
		return fmt.Errorf("order rejected: status %d reason %d", resp.Status, resp.StatusReason)
	}
	return nil
}

func (c *Client) OpenPositions(ctx context.Context) ([]broker.Position, error) {
	const op = "gaincapital.OpenPositions"

	accountID, err := c.authenticated()
	if err != nil {
		return nil, fxerr.E(op, fxerr.Broker, err)
	}
	q := url.Values{}
	q.Set("TradingAccountId", strconv.FormatInt(accountID, 10))

	var pr openPositionsResponse
	if err := c.do(ctx, http.MethodGet, "/order/openpositions", q, nil, &pr); err != nil {
		return nil, fxerr.E(op, fxerr.Broker, err)
	}

	out := make([]broker.Position, 0, len(pr.OpenPositions))
	for _, p := range pr.OpenPositions {
		out = append(out, broker.Position{
			Symbol:    p.MarketName,
			Direction: broker.Direction(strings.ToLower(p.Direction)),
			Quantity:  int(math.Round(p.Quantity)),
			Price:     p.Price,
		})
	}
	return out, nil
}

func (c *Client) ActiveOrders(ctx context.Context) ([]broker.Order, error) {
	const op = "gaincapital.ActiveOrders"

	accountID, err := c.authenticated()
	if err != nil {
		return nil, fxerr.E(op, fxerr.Broker, err)
	}

	var ar activeOrdersResponse
	if err := c.do(ctx, http.MethodPost, "/order/activeorders", nil,
		activeOrdersRequest{TradingAccountID: accountID, MaxResults: 100}, &ar); err != nil {
		return nil, fxerr.E(op, fxerr.Broker, err)
	}

	out := make([]broker.Order, 0, len(ar.ActiveOrders))
	for _, o := range ar.ActiveOrders {
		if o.TradeOrder == nil {
			continue
		}
		out = append(out, broker.Order{
			ID:        o.TradeOrder.OrderID,
			Symbol:    o.TradeOrder.MarketName,
			Direction: broker.Direction(strings.ToLower(o.TradeOrder.Direction)),
			Quantity:  int(math.Round(o.TradeOrder.Quantity)),
			Status:    broker.OrderStatus(o.TradeOrder.StatusID),
		})
	}
	return out, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID int64) error {
	const op = "gaincapital.CancelOrder"

	accountID, err := c.authenticated()
	if err != nil {
		return fxerr.E(op, fxerr.Broker, err)
	}
	if err := c.do(ctx, http.MethodPost, "/order/cancel", nil,
		cancelOrderRequest{OrderID: orderID, TradingAccountID: accountID}, nil); err != nil {
		return fxerr.E(op, fxerr.Broker, fmt.Errorf("order %d: %w", orderID, err))
	}
	return nil
}

func (c *Client) MarginInfo(ctx context.Context) (broker.Margin, error) {
	const op = "gaincapital.MarginInfo"

	if _, err := c.authenticated(); err != nil {
		return broker.Margin{}, fxerr.E(op, fxerr.Broker, err)
	}
	var mr marginResponse
	if err := c.do(ctx, http.MethodGet, "/margin/clientAccountMargin", nil, nil, &mr); err != nil {
		return broker.Margin{}, fxerr.E(op, fxerr.Broker, err)
	}
	return broker.Margin{NetEquity: mr.NetEquity, Margin: mr.Margin}, nil
}

func timeFromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
