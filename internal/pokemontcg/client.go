// Package pokemontcg is a minimal client for the public card catalog API.
package pokemontcg

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

const (
	DefaultBaseURL     = "https://api.pokemontcg.io/v2"
	MaxPageSize        = 250
	OrderByReleaseDesc = "-set.releaseDate"
)

type Ability struct {
	Name string `json:"name"`
	Text string `json:"text"`
	Type string `json:"type"`
}

type Attack struct {
	Name   string   `json:"name"`
	Cost   []string `json:"cost"`
	Damage string   `json:"damage"`
	Text   string   `json:"text"`
}

type TypeValue struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type Set struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Images struct {
	Small string `json:"small"`
	Large string `json:"large"`
}

// Card is the wire shape of a card. Pointer slices stay nil when the field
// is missing from the payload.
type Card struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Supertype   string       `json:"supertype"`
	Subtypes    []string     `json:"subtypes"`
	HP          string       `json:"hp"`
	Types       []string     `json:"types"`
	Abilities   *[]Ability   `json:"abilities"`
	Attacks     *[]Attack    `json:"attacks"`
	Weaknesses  *[]TypeValue `json:"weaknesses"`
	Resistances *[]TypeValue `json:"resistances"`
	RetreatCost []string     `json:"retreatCost"`
	Rules       []string     `json:"rules"`
	Set         Set          `json:"set"`
	Images      Images       `json:"images"`
}

type Page struct {
	Data       []Card `json:"data"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
	Count      int    `json:"count"`
	TotalCount int    `json:"totalCount"`
}

type PageQuery struct {
	Query    string // q expression, empty for no filter
	Page     int
	PageSize int
	OrderBy  string
}

// UpstreamError is returned for transport failures, non-2xx answers and
// undecodable bodies.
type UpstreamError struct {
	Page   int
	Status int // 0 when no response was received
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("card source page %d: status %d: %v", e.Page, e.Status, e.Err)
	}
	return fmt.Sprintf("card source page %d: %v", e.Page, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient builds a client for baseURL. The per-request deadline comes from
// the caller's context; the transport timeout is only a backstop.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
}

func (c *Client) FetchPage(ctx context.Context, q PageQuery) (*Page, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	pageSize := q.PageSize
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	params.Set("pageSize", strconv.Itoa(pageSize))
	if q.Query != "" {
		params.Set("q", q.Query)
	}
	if q.OrderBy != "" {
		params.Set("orderBy", q.OrderBy)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/cards?"+params.Encode(), nil)
	if err != nil {
		return nil, &UpstreamError{Page: q.Page, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &UpstreamError{Page: q.Page, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &UpstreamError{Page: q.Page, Status: resp.StatusCode, Err: fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(body)))}
	}

	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, &UpstreamError{Page: q.Page, Status: resp.StatusCode, Err: fmt.Errorf("decode page: %w", err)}
	}
	return &page, nil
}
