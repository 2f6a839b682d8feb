/*
Copyright © 2020 A. Jensen <jensen.aaro@gmail.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package api

import (
	"bytes"
	"cloud.google.com/go/logging"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"

	"github.com/ajjensen13/ivsrefresh/internal/model"
	"github.com/ajjensen13/ivsrefresh/internal/util"
)

const (
	DefaultBaseURL = "https://restapi.ivolatility.com"
	IVSPath        = "/equities/eod/ivs"
)

var (
	ErrTooManyRequests = errors.New("error: too many requests")
	ErrMalformedBody   = errors.New("malformed response body")
)

// Client requests end of day implied volatility surfaces.
type Client struct {
	http       *resty.Client
	apiKey     string
	ticker     *time.Ticker
	newBackOff func() backoff.BackOff
	notify     backoff.Notify
}

type Option func(*Client)

// WithThrottle spaces requests issued through the client at least d apart.
func WithThrottle(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.ticker = time.NewTicker(d)
		}
	}
}

// WithBackOff sets the retry policy. f is called once per request since a
// backoff.BackOff is not safe for concurrent use.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(c *Client) {
		c.newBackOff = f
	}
}

func WithNotify(n backoff.Notify) Option {
	return func(c *Client) {
		c.notify = n
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.SetTimeout(d)
	}
}

func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		http:   resty.New().SetBaseURL(baseURL).SetHeader("Accept", "application/json"),
		apiKey: apiKey,
		newBackOff: func() backoff.BackOff {
			return &backoff.StopBackOff{}
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Close() {
	if c.ticker != nil {
		c.ticker.Stop()
	}
}

type IVSRequest struct {
	Symbol string
	Region string
	Window model.DateWindow
	Filter model.FilterBounds
}

func (r IVSRequest) params() map[string]string {
	return map[string]string{
		"symbol":     r.Symbol,
		"region":     r.Region,
		"from":       r.Window.From.Format(model.DateLayout),
		"to":         r.Window.To.Format(model.DateLayout),
		"OTMFrom":    strconv.Itoa(r.Filter.OTMFrom),
		"OTMTo":      strconv.Itoa(r.Filter.OTMTo),
		"periodFrom": strconv.Itoa(r.Filter.PeriodFrom),
		"periodTo":   strconv.Itoa(r.Filter.PeriodTo),
	}
}

// FetchIVS returns the provider rows for req. No rows is not an error.
func (c *Client) FetchIVS(ctx context.Context, req IVSRequest) (result []model.RawRow, err error) {
	ctx = util.WithLoggerValue(ctx, "action", "fetch")
	util.Logf(ctx, logging.Debug, "requesting %q ivs from ivolatility (%v) / %s", req.Symbol, req.Window, req.Region)

	err = backoff.RetryNotify(func() error {
		err := c.wait(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}

		ctx, cancel := context.WithTimeout(ctx, util.ShortReqTimeout)
		defer cancel()

		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(req.params()).
			SetQueryParam("apiKey", c.apiKey).
			Get(IVSPath)
		if err != nil {
			return fmt.Errorf("error while requesting ivs for stock %q: %w", req.Symbol, err)
		}

		msg := fmt.Sprintf("error while requesting ivs for stock %q", req.Symbol)
		if err := handleErr(msg, resp); err != nil {
			return err
		}

		rows, err := decodeRows(resp.Body())
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to parse ivs for stock %q: %w", req.Symbol, err))
		}
		result = rows
		return nil
	}, backoff.WithContext(c.newBackOff(), ctx), c.notify)

	return result, err
}

func (c *Client) wait(ctx context.Context) error {
	if c.ticker == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("aborting ivs request: %w", ctx.Err())
	case <-c.ticker.C:
		return nil
	}
}

// handleErr classifies a non-2xx response. Rate limiting and server errors are
// retried; other client errors are permanent.
func handleErr(msg string, resp *resty.Response) error {
	code := resp.StatusCode()
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w", msg, ErrTooManyRequests)
	case code >= 500:
		return fmt.Errorf("%s: %s (%s)", msg, resp.Status(), resp.Body())
	default:
		return backoff.Permanent(fmt.Errorf("%s: %s (%s)", msg, resp.Status(), resp.Body()))
	}
}

// decodeRows accepts either a bare JSON array of records or an object holding
// the records under "data".
func decodeRows(body []byte) ([]model.RawRow, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	switch body[0] {
	case '[':
		var rows []model.RawRow
		if err := dec.Decode(&rows); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
		return rows, nil
	case '{':
		var wrapped struct {
			Data   []model.RawRow `json:"data"`
			Status *struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"status"`
		}
		if err := dec.Decode(&wrapped); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
		if wrapped.Data == nil && wrapped.Status != nil && wrapped.Status.Code != "" && wrapped.Status.Code != "COMPLETE" {
			return nil, fmt.Errorf("%w: status %s: %s", ErrMalformedBody, wrapped.Status.Code, wrapped.Status.Message)
		}
		return wrapped.Data, nil
	default:
		return nil, fmt.Errorf("%w: unexpected %q", ErrMalformedBody, body[0])
	}
}
