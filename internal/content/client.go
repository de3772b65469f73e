package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

var ErrNotConfigured = errors.New("content: api url not configured")

// ClientConfig describes how to reach the headless CMS.
type ClientConfig struct {
	// APIURL is the repository API root, e.g. https://repo.cdn.prismic.io/api/v2.
	APIURL       string
	AccessToken  string
	DocumentType string
	PageSize     int
	Timeout      time.Duration
}

// Client queries a Prismic-style content API.
type Client struct {
	http    *resty.Client
	docType string
	size    int
}

type apiInfo struct {
	Refs []struct {
		ID          string `json:"id"`
		Ref         string `json:"ref"`
		IsMasterRef bool   `json:"isMasterRef"`
	} `json:"refs"`
}

type searchResponse struct {
	Results []document `json:"results"`
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIURL == "" {
		return nil, ErrNotConfigured
	}
	if cfg.DocumentType == "" {
		return nil, errors.New("content: document type is required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	r := resty.New().
		SetBaseURL(strings.TrimRight(cfg.APIURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.AccessToken != "" {
		r.SetQueryParam("access_token", cfg.AccessToken)
	}

	return &Client{http: r, docType: cfg.DocumentType, size: cfg.PageSize}, nil
}

// masterRef resolves the ref of the currently published content.
func (c *Client) masterRef(ctx context.Context) (string, error) {
	var info apiInfo

	resp, err := c.http.R().SetContext(ctx).SetResult(&info).Get("")
	if err != nil {
		return "", fmt.Errorf("content: api info: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("content: api info: status %d", resp.StatusCode())
	}

	for _, ref := range info.Refs {
		if ref.IsMasterRef {
			return ref.Ref, nil
		}
	}

	return "", errors.New("content: no master ref")
}

// Documents returns the published documents of the configured type with
// their title and content fields.
func (c *Client) Documents(ctx context.Context) ([]document, error) {
	ref, err := c.masterRef(ctx)
	if err != nil {
		return nil, err
	}

	var out searchResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ref":      ref,
			"q":        fmt.Sprintf(`[[at(document.type,"%s")]]`, c.docType),
			"fetch":    fmt.Sprintf("%s.title,%s.content", c.docType, c.docType),
			"pageSize": fmt.Sprint(c.size),
		}).
		SetResult(&out).
		Get("/documents/search")
	if err != nil {
		return nil, fmt.Errorf("content: search: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("content: search: status %d", resp.StatusCode())
	}

	return out.Results, nil
}
