package whspersdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal Whsper claims API client. Every endpoint is public, so
// there are no credentials to configure.
type Client struct {
	BaseURL    string
	BasePath   string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

// Claim mirrors the API claim model. Amount is a base 10 signed 128-bit integer.
type Claim struct {
	ID               uint64 `json:"id"`
	Creator          string `json:"creator"`
	Recipient        string `json:"recipient"`
	Amount           string `json:"amount"`
	Token            string `json:"token"`
	Status           string `json:"status"`
	CreatedAt        uint64 `json:"created_at"`
	ClaimWindowStart uint64 `json:"claim_window_start"`
	ClaimWindowEnd   uint64 `json:"claim_window_end"`
}

// ClaimResult is the found/not_found lookup result.
type ClaimResult struct {
	Result string `json:"result"`
	Claim  *Claim `json:"claim,omitempty"`
}

func (r ClaimResult) Found() bool { return r.Result == "found" && r.Claim != nil }

// ClaimPage is one page of an index listing.
type ClaimPage struct {
	Items           []Claim `json:"items"`
	Limit           uint32  `json:"limit"`
	IncludeTerminal bool    `json:"include_terminal"`
}

type ClaimWindowConfig struct {
	WindowDurationSecs uint64 `json:"window_duration_secs"`
	MinClaimDelaySecs  uint64 `json:"min_claim_delay_secs"`
}

// ListOptions tune index listings. A nil IncludeTerminal leaves the server
// default (pending only); a zero Limit leaves the server default page size.
type ListOptions struct {
	Limit           uint32
	IncludeTerminal *bool
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// GetPendingClaim fetches a claim by id.
func (c *Client) GetPendingClaim(ctx context.Context, id uint64) (ClaimResult, error) {
	var resp ClaimResult
	err := c.get(ctx, "claims/"+strconv.FormatUint(id, 10), nil, &resp)
	return resp, err
}

// ClaimsByRecipient lists claims addressed to recipient.
func (c *Client) ClaimsByRecipient(ctx context.Context, recipient string, opts ListOptions) (ClaimPage, error) {
	return c.list(ctx, "recipients", recipient, opts)
}

// ClaimsByCreator lists claims created by creator.
func (c *Client) ClaimsByCreator(ctx context.Context, creator string, opts ListOptions) (ClaimPage, error) {
	return c.list(ctx, "creators", creator, opts)
}

// ClaimWindowConfig returns the claim window settings.
func (c *Client) ClaimWindowConfig(ctx context.Context) (ClaimWindowConfig, error) {
	var resp ClaimWindowConfig
	err := c.get(ctx, "claim-window-config", nil, &resp)
	return resp, err
}

func (c *Client) list(ctx context.Context, collection, owner string, opts ListOptions) (ClaimPage, error) {
	q := url.Values{}
	if opts.Limit > 0 {
		q.Set("limit", strconv.FormatUint(uint64(opts.Limit), 10))
	}
	if opts.IncludeTerminal != nil {
		q.Set("include_terminal", strconv.FormatBool(*opts.IncludeTerminal))
	}
	var resp ClaimPage
	endpoint := fmt.Sprintf("%s/%s/claims", collection, url.PathEscape(owner))
	err := c.get(ctx, endpoint, q, &resp)
	return resp, err
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	u := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
