// Package dashboard is the client side of the rental backend: a typed
// REST client with an error taxonomy, concurrent view joins and a loader
// that drops stale results.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/iliyamo/media-rental/internal/config"
	"github.com/iliyamo/media-rental/internal/model"
	"github.com/iliyamo/media-rental/internal/validation"
)

const maxResponseBytes = 8 << 20

// Client talks to the /v1 API.  It never retries; every failure surfaces
// as one of the error types of this package.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	V       *validation.Validator
}

// NewClient returns a client with a tuned transport.
func NewClient(cfg config.ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		Token:   cfg.Token,
		HTTP: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		V: validation.New(),
	}
}

// ListParams are the shared list parameters of the API.
type ListParams struct {
	Q        string
	Sort     string
	Order    string
	Page     int
	PageSize int
	Status   string
	MemberID uint64
	TitleID  uint64
}

func (p ListParams) values() url.Values {
	v := url.Values{}
	set := func(k, s string) {
		if s != "" {
			v.Set(k, s)
		}
	}
	set("q", p.Q)
	set("sort", p.Sort)
	set("order", p.Order)
	set("status", p.Status)
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(p.PageSize))
	}
	if p.MemberID > 0 {
		v.Set("member_id", strconv.FormatUint(p.MemberID, 10))
	}
	if p.TitleID > 0 {
		v.Set("title_id", strconv.FormatUint(p.TitleID, 10))
	}
	return v
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// do sends one request.  body is validated first, so invalid input fails
// with a ValidationError without touching the network.  A cancelled ctx
// is returned as ctx.Err(), not as a NetworkError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	op := method + " " + path
	var rdr io.Reader
	if body != nil {
		if c.V != nil {
			if err := c.V.Validate(body); err != nil {
				fields := validation.Fields(err)
				if fields == nil {
					fields = []string{err.Error()}
				}
				return &ValidationError{Fields: fields}
			}
		}
		bs, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		rdr = bytes.NewReader(bs)
	}

	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return &NetworkError{Op: op, Err: errors.Wrap(err, "build request")}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &NetworkError{Op: op, Err: errors.WithStack(err)}
	}
	defer resp.Body.Close()

	bs, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &NetworkError{Op: op, Status: resp.StatusCode, Err: errors.Wrap(err, "read response")}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(bs) == 0 {
			return nil
		}
		if err := json.Unmarshal(bs, out); err != nil {
			return &NetworkError{Op: op, Status: resp.StatusCode, Err: errors.Wrap(err, "decode response")}
		}
		return nil
	}

	var ae apiError
	_ = json.Unmarshal(bs, &ae)
	switch resp.StatusCode {
	case http.StatusBadRequest:
		msg := ae.Message
		if msg == "" {
			msg = "bad request"
		}
		return &ValidationError{Fields: strings.Split(msg, "; ")}
	case http.StatusNotFound:
		return &NotFoundError{Message: ae.Message}
	case http.StatusConflict:
		return &ConflictError{Code: ae.Error, Message: ae.Message}
	}
	return &NetworkError{Op: op, Status: resp.StatusCode, Err: errors.Errorf("unexpected answer %q", strings.TrimSpace(string(bs)))}
}

type envelope[T any] struct {
	Data T `json:"data"`
}

func getData[T any](ctx context.Context, c *Client, method, path string, body any) (T, error) {
	var env envelope[T]
	err := c.do(ctx, method, path, nil, body, &env)
	return env.Data, err
}

func list[T any](ctx context.Context, c *Client, path string, p ListParams) (model.Page[T], error) {
	var page model.Page[T]
	err := c.do(ctx, http.MethodGet, path, p.values(), nil, &page)
	return page, err
}

// listAll pages through a listing with the largest page size.
func listAll[T any](ctx context.Context, c *Client, path string, p ListParams) ([]T, error) {
	p.PageSize = 200
	var out []T
	for p.Page = 1; ; p.Page++ {
		page, err := list[T](ctx, c, path, p)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Data...)
		if len(page.Data) == 0 || int64(len(out)) >= page.Total {
			return out, nil
		}
	}
}

func idPath(prefix string, id uint64) string {
	return prefix + "/" + strconv.FormatUint(id, 10)
}
