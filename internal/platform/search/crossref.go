// Package search looks up scholarly works so the generator can verify
// publication and citation claims.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/yungbote/caseforge-backend/internal/observability"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
	"github.com/yungbote/caseforge-backend/internal/platform/openai"
)

const (
	ToolName        = "search_scholarly_works"
	DefaultBaseURL  = "https://api.crossref.org"
	defaultRows     = 5
	defaultCacheTTL = 6 * time.Hour
)

type Work struct {
	Title     string   `json:"title"`
	Venue     string   `json:"venue,omitempty"`
	Year      int      `json:"year,omitempty"`
	DOI       string   `json:"doi,omitempty"`
	Type      string   `json:"type,omitempty"`
	Authors   []string `json:"authors,omitempty"`
	Citations int      `json:"citations"`
}

type Query struct {
	Query  string `json:"query"`
	Author string `json:"author,omitempty"`
}

type Config struct {
	BaseURL    string
	Mailto     string
	HTTPClient *http.Client
	CacheTTL   time.Duration
}

type Client struct {
	log     *logger.Logger
	baseURL string
	mailto  string
	http    *http.Client
	cache   *gocache.Cache
}

func NewClient(log *logger.Logger, cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Client{
		log:     log.With("client", "ScholarlySearch"),
		baseURL: base,
		mailto:  cfg.Mailto,
		http:    hc,
		cache:   gocache.New(ttl, 2*ttl),
	}
}

type crossrefResponse struct {
	Message struct {
		Items []struct {
			DOI            string   `json:"DOI"`
			Type           string   `json:"type"`
			Title          []string `json:"title"`
			ContainerTitle []string `json:"container-title"`
			ReferencedBy   int      `json:"is-referenced-by-count"`
			Issued         struct {
				DateParts [][]int `json:"date-parts"`
			} `json:"issued"`
			Author []struct {
				Given  string `json:"given"`
				Family string `json:"family"`
			} `json:"author"`
		} `json:"items"`
	} `json:"message"`
}

// Search returns up to five works matching q. Results are cached per query.
func (c *Client) Search(ctx context.Context, q Query) ([]Work, error) {
	q.Query = strings.TrimSpace(q.Query)
	q.Author = strings.TrimSpace(q.Author)
	if q.Query == "" {
		return nil, errors.New("search: empty query")
	}
	key := strings.ToLower(q.Query + "|" + q.Author)
	if v, ok := c.cache.Get(key); ok {
		observability.Current().ObserveSearchCache(true)
		return v.([]Work), nil
	}
	observability.Current().ObserveSearchCache(false)

	params := url.Values{}
	params.Set("query.bibliographic", q.Query)
	if q.Author != "" {
		params.Set("query.author", q.Author)
	}
	params.Set("rows", strconv.Itoa(defaultRows))
	if c.mailto != "" {
		params.Set("mailto", c.mailto)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/works?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search: status %d", resp.StatusCode)
	}
	var body crossrefResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("search decode: %w", err)
	}

	works := make([]Work, 0, len(body.Message.Items))
	for _, it := range body.Message.Items {
		w := Work{DOI: it.DOI, Type: it.Type, Citations: it.ReferencedBy}
		if len(it.Title) > 0 {
			w.Title = it.Title[0]
		}
		if len(it.ContainerTitle) > 0 {
			w.Venue = it.ContainerTitle[0]
		}
		if len(it.Issued.DateParts) > 0 && len(it.Issued.DateParts[0]) > 0 {
			w.Year = it.Issued.DateParts[0][0]
		}
		for _, a := range it.Author {
			name := strings.TrimSpace(a.Given + " " + a.Family)
			if name != "" {
				w.Authors = append(w.Authors, name)
			}
		}
		works = append(works, w)
	}
	c.cache.Set(key, works, gocache.DefaultExpiration)
	c.log.Debug("Scholarly search", "query", q.Query, "results", len(works))
	return works, nil
}

// Tool exposes Search to the generator.
func (c *Client) Tool() openai.Tool {
	return openai.Tool{
		Name:        ToolName,
		Description: "Search published scholarly works to verify titles, venues, publication years and citation counts.",
		Parameters: map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"required":             []string{"query"},
			"properties": map[string]any{
				"query":  map[string]any{"type": "string", "description": "Title or keywords of the work."},
				"author": map[string]any{"type": "string", "description": "Optional author name."},
			},
		},
		Invoke: func(ctx context.Context, args json.RawMessage) (string, error) {
			var q Query
			if err := json.Unmarshal(args, &q); err != nil {
				return "", fmt.Errorf("bad arguments: %w", err)
			}
			works, err := c.Search(ctx, q)
			if err != nil {
				return "", err
			}
			b, err := json.Marshal(map[string]any{"works": works})
			if err != nil {
				return "", err
			}
			return string(b), nil
		},
	}
}
