package service

import (
	"context"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// брокер отвечает 400 с этим кодом, если счёт уже активен
const codeSameAccount = "error.not-different.accountId"

// Environment - Demo или Live, зависит только от base_url.
func (c *Client) Environment() string {
	if strings.Contains(strings.ToLower(c.cfg.BaseURL), "demo") {
		return "Demo"
	}
	return "Live"
}

// Accounts - счета клиента, активный в сессии помечен Current.
func (c *Client) Accounts(ctx context.Context) ([]Account, error) {
	var r accountsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/accounts", nil, &r); err != nil {
		return nil, errors.Wrap(err, "capital accounts")
	}
	var s sessionInfoResponse
	if err := c.do(ctx, http.MethodGet, sessionPath, nil, &s); err != nil {
		return nil, errors.Wrap(err, "capital session info")
	}

	out := make([]Account, 0, len(r.Accounts))
	for _, a := range r.Accounts {
		out = append(out, Account{
			ID:         a.AccountID,
			Name:       a.AccountName,
			Type:       a.AccountType,
			Currency:   a.Currency,
			Status:     a.Status,
			Balance:    a.Balance.Balance,
			Available:  a.Balance.Available,
			ProfitLoss: a.Balance.ProfitLoss,
			Preferred:  a.Preferred,
			Current:    a.AccountID == s.AccountID,
		})
	}
	return out, nil
}

// SwitchAccount делает счёт активным для сессии. Выбор переживает перелогин.
func (c *Client) SwitchAccount(ctx context.Context, accountID string) error {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return errors.New("capital switch account: empty account id")
	}
	err := c.do(ctx, http.MethodPut, sessionPath, switchAccountRequest{AccountID: accountID}, nil)
	if err != nil && !sameAccount(err) {
		return errors.Wrapf(err, "capital switch account %s", accountID)
	}

	c.mu.Lock()
	c.accountID = accountID
	c.mu.Unlock()

	c.log.Info("account switched", zap.String("account", accountID))
	return nil
}

func (c *Client) account() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accountID
}

// restoreAccount после нового логина возвращает выбранный счёт:
// новая сессия всегда открывается на preferred.
func (c *Client) restoreAccount(ctx context.Context) error {
	acc := c.account()
	if acc == "" {
		return nil
	}
	payload, err := sonic.Marshal(switchAccountRequest{AccountID: acc})
	if err != nil {
		return errors.Wrap(err, "capital restore account marshal")
	}
	status, data, err := c.send(ctx, http.MethodPut, sessionPath, payload)
	if err != nil {
		return err
	}
	if status/100 != 2 {
		if e := apiError(http.MethodPut, sessionPath, status, data); !sameAccount(e) {
			return e
		}
	}
	return nil
}

func sameAccount(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == codeSameAccount
}
