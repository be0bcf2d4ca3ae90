package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"automarket/models"
)

// Resource collections exposed by the record store.
const (
	Accounts  = "accounts"
	Listings  = "listings"
	Proposals = "proposals"
)

var ErrNotFound = errors.New("store: record not found")

// Client talks to a generic record store: list with equality filters,
// create, partial update, delete. Every call is a single round-trip; no
// retries, no caching.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// NewWithHTTPClient is used by tests to point the client at an
// httptest server transport.
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: baseURL, http: hc}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("store: %s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("store: decoding %s response: %w", path, err)
		}
	}
	return nil
}

// List fetches all records of a resource matching the optional equality
// filter, in store order.
func (c *Client) List(ctx context.Context, resource string, filter url.Values, out any) error {
	path := "/" + resource
	if len(filter) > 0 {
		path += "?" + filter.Encode()
	}
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Create inserts a record and decodes the stored copy, including the
// store-assigned id, into out.
func (c *Client) Create(ctx context.Context, resource string, body, out any) error {
	return c.do(ctx, http.MethodPost, "/"+resource, body, out)
}

// Patch merges the given fields into an existing record.
func (c *Client) Patch(ctx context.Context, resource, id string, patch any) error {
	return c.do(ctx, http.MethodPatch, "/"+resource+"/"+url.PathEscape(id), patch, nil)
}

// Delete removes a record. Callers that want idempotent semantics treat
// ErrNotFound as success.
func (c *Client) Delete(ctx context.Context, resource, id string) error {
	return c.do(ctx, http.MethodDelete, "/"+resource+"/"+url.PathEscape(id), nil, nil)
}

// Typed helpers over the three collections.

func (c *Client) FindAccounts(ctx context.Context, filter url.Values) ([]models.Account, error) {
	var accounts []models.Account
	if err := c.List(ctx, Accounts, filter, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (c *Client) CreateAccount(ctx context.Context, a models.Account) (models.Account, error) {
	var created models.Account
	if err := c.Create(ctx, Accounts, a, &created); err != nil {
		return models.Account{}, err
	}
	return created, nil
}

func (c *Client) AllListings(ctx context.Context) ([]models.Listing, error) {
	var listings []models.Listing
	if err := c.List(ctx, Listings, nil, &listings); err != nil {
		return nil, err
	}
	return listings, nil
}

func (c *Client) CreateListing(ctx context.Context, l models.Listing) (models.Listing, error) {
	var created models.Listing
	if err := c.Create(ctx, Listings, l, &created); err != nil {
		return models.Listing{}, err
	}
	return created, nil
}

func (c *Client) FindProposals(ctx context.Context, filter url.Values) ([]models.Proposal, error) {
	var proposals []models.Proposal
	if err := c.List(ctx, Proposals, filter, &proposals); err != nil {
		return nil, err
	}
	for i := range proposals {
		proposals[i].Normalize()
	}
	return proposals, nil
}

func (c *Client) CreateProposal(ctx context.Context, p models.Proposal) (models.Proposal, error) {
	var created models.Proposal
	if err := c.Create(ctx, Proposals, p, &created); err != nil {
		return models.Proposal{}, err
	}
	created.Normalize()
	return created, nil
}

func (c *Client) SetProposalStatus(ctx context.Context, id string, status models.ProposalStatus) error {
	return c.Patch(ctx, Proposals, id, map[string]models.ProposalStatus{"status": status})
}

func (c *Client) DeleteProposal(ctx context.Context, id string) error {
	err := c.Delete(ctx, Proposals, id)
	if errors.Is(err, ErrNotFound) {
		// Already gone; deletion is idempotent from the caller's view.
		return nil
	}
	return err
}
