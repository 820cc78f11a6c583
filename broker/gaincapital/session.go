package gaincapital

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/rustyeddy/fxtrader/fxerr"
)

type logOnRequest struct {
	UserName    string `json:"UserName"`
	Password    string `json:"Password"`
	AppVersion  string `json:"AppVersion"`
	AppComments string `json:"AppComments"`
	AppKey      string `json:"AppKey"`
}

type logOnResponse struct {
	Session    string `json:"Session"`
	StatusCode int    `json:"StatusCode"`
}

type validateRequest struct {
	UserName string `json:"UserName"`
	Session  string `json:"Session"`
}

type validateResponse struct {
	IsAuthenticated bool `json:"IsAuthenticated"`
}

type accountsResponse struct {
	ClientAccountID int64 `json:"ClientAccountId"`
	TradingAccounts []struct {
		TradingAccountID   int64  `json:"TradingAccountId"`
		TradingAccountCode string `json:"TradingAccountCode"`
	} `json:"TradingAccounts"`
}

// Authenticate logs on and looks up the trading account id. Cached market
// ids are dropped so they are resolved again for the new session.
func (c *Client) Authenticate(ctx context.Context) error {
	const op = "gaincapital.Authenticate"

	c.mu.Lock()
	c.session = ""
	c.markets = make(map[string]int64)
	c.mu.Unlock()

	var lr logOnResponse
	err := c.do(ctx, http.MethodPost, "/session", nil, logOnRequest{
		UserName:   c.username,
		Password:   c.password,
		AppVersion: "1",
		AppKey:     c.appKey,
	}, &lr)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && (se.Status == http.StatusUnauthorized || se.Status == http.StatusForbidden) {
			return fxerr.E(op, fxerr.Credential, err)
		}
		return fxerr.E(op, fxerr.Broker, err)
	}
	if lr.Session == "" {
		return fxerr.Errorf(op, fxerr.Credential, "log on for %s returned no session (status code %d)", c.username, lr.StatusCode)
	}

	c.mu.Lock()
	c.session = lr.Session
	c.mu.Unlock()

	var ar accountsResponse
	if err := c.do(ctx, http.MethodGet, "/userAccount/ClientAndTradingAccount", nil, nil, &ar); err != nil {
		return fxerr.E(op, fxerr.Broker, fmt.Errorf("trading account: %w", err))
	}
	if len(ar.TradingAccounts) == 0 {
		return fxerr.Errorf(op, fxerr.Broker, "no trading account for %s", c.username)
	}

	c.mu.Lock()
	c.accountID = ar.TradingAccounts[0].TradingAccountID
	c.mu.Unlock()

	c.log.Info("session initiated",
		zap.String("username", c.username),
		zap.Int64("trading_account_id", ar.TradingAccounts[0].TradingAccountID))
	return nil
}

// ValidateSession re-authenticates when there is no session or the API
// reports it expired.
func (c *Client) ValidateSession(ctx context.Context) error {
	const op = "gaincapital.ValidateSession"

	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == "" {
		return c.Authenticate(ctx)
	}

	var vr validateResponse
	if err := c.do(ctx, http.MethodPost, "/session/validate", nil,
		validateRequest{UserName: c.username, Session: session}, &vr); err != nil {
		return fxerr.E(op, fxerr.Broker, err)
	}
	if vr.IsAuthenticated {
		return nil
	}
	c.log.Info("session expired, logging on again")
	return c.Authenticate(ctx)
}
