package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rickgao/twstock-daily/internal/model"
)

// FetchOTC fetches the month of daily rows containing day for an OTC
// instrument. Volume and turnover in the result are still in thousands.
func (c *Client) FetchOTC(ctx context.Context, inst model.Instrument, day time.Time) ([][]string, error) {
	form := url.Values{}
	form.Set("date", day.Format("2006/01/02"))
	form.Set("code", inst.Code)
	form.Set("response", "json")
	payload := form.Encode()

	build := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.otcURL, strings.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
		return req, nil
	}

	body, err := c.doWithRetry(ctx, model.MarketOTC, build)
	if err != nil {
		return nil, fmt.Errorf("fetch otc %s: %w", inst.Code, err)
	}

	rows, err := DecodeOTC(body)
	if err != nil {
		return nil, fmt.Errorf("fetch otc %s: %w", inst.Code, err)
	}
	return rows, nil
}
