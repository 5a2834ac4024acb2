// Package api is the typed client for the content-gap backend REST API.
// Every method maps to one endpoint, decodes the JSON body into the types in
// this package, and turns non-2xx responses into APIError values.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AndreiAlexandruParaschiv/llmo-prompts-intent/internal/jobs"
)

const defaultTimeout = 30 * time.Second

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	baseURL string
	httpc   *http.Client
	logger  *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpc.Timeout = d }
}

// WithLogger attaches a logger for request-level debug output.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New constructs a Client for the given base URL, e.g. "http://localhost:8000".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: defaultTimeout},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do performs one request and decodes a 2xx JSON body into out (skipped when
// out is nil). in, when non-nil, is sent as the JSON body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("dur", time.Since(start)))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// Projects

// CreateProject registers a new project.
func (c *Client) CreateProject(ctx context.Context, in ProjectCreate) (Project, error) {
	var out Project
	err := c.do(ctx, http.MethodPost, "/api/projects/", nil, in, &out)
	return out, err
}

// ListProjects returns one page of projects.
func (c *Client) ListProjects(ctx context.Context, p PageParams) (PageOf[Project], error) {
	q := url.Values{}
	p.apply(q)
	var env struct {
		Projects []Project `json:"projects"`
		listMeta
	}
	if err := c.do(ctx, http.MethodGet, "/api/projects/", q, nil, &env); err != nil {
		return PageOf[Project]{}, err
	}
	return pageOf(env.Projects, env.listMeta), nil
}

// GetProject fetches one project.
func (c *Client) GetProject(ctx context.Context, id uuid.UUID) (Project, error) {
	var out Project
	err := c.do(ctx, http.MethodGet, "/api/projects/"+id.String(), nil, nil, &out)
	return out, err
}

// UpdateProject patches a project's mutable fields.
func (c *Client) UpdateProject(ctx context.Context, id uuid.UUID, in ProjectUpdate) (Project, error) {
	var out Project
	err := c.do(ctx, http.MethodPatch, "/api/projects/"+id.String(), nil, in, &out)
	return out, err
}

// DeleteProject removes a project and everything under it.
func (c *Client) DeleteProject(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/projects/"+id.String(), nil, nil, nil)
}

// ProjectStats fetches the aggregate dashboard for a project.
func (c *Client) ProjectStats(ctx context.Context, id uuid.UUID) (ProjectStats, error) {
	var out ProjectStats
	err := c.do(ctx, http.MethodGet, "/api/projects/"+id.String()+"/stats", nil, nil, &out)
	return out, err
}

// StartCrawl submits a crawl of the project site and returns its task ref.
// With no start URLs the backend crawls the project's target domains.
func (c *Client) StartCrawl(ctx context.Context, id uuid.UUID, startURLs []string) (TaskRef, error) {
	var in any
	if len(startURLs) > 0 {
		in = map[string][]string{"start_urls": startURLs}
	}
	var out TaskRef
	err := c.do(ctx, http.MethodPost, "/api/projects/"+id.String()+"/crawl", nil, in, &out)
	return out, err
}

// StartMatching submits prompt-to-page matching for the project.
func (c *Client) StartMatching(ctx context.Context, id uuid.UUID) (TaskRef, error) {
	var out TaskRef
	err := c.do(ctx, http.MethodPost, "/api/projects/"+id.String()+"/match", nil, nil, &out)
	return out, err
}

// CSV imports

// ProcessImport starts processing an uploaded import with the confirmed
// column mapping and returns the task ref to poll.
func (c *Client) ProcessImport(ctx context.Context, importID uuid.UUID, mapping map[string]string) (TaskRef, error) {
	in := map[string]any{"column_mapping": mapping}
	var out TaskRef
	err := c.do(ctx, http.MethodPost, "/api/csv/"+importID.String()+"/process", nil, in, &out)
	return out, err
}

// GetImport fetches one CSV import.
func (c *Client) GetImport(ctx context.Context, importID uuid.UUID) (CSVImport, error) {
	var out CSVImport
	err := c.do(ctx, http.MethodGet, "/api/csv/"+importID.String(), nil, nil, &out)
	return out, err
}

// ListImports returns one page of CSV imports.
func (c *Client) ListImports(ctx context.Context, f ImportFilter) (PageOf[CSVImport], error) {
	var env struct {
		Imports []CSVImport `json:"imports"`
		listMeta
	}
	if err := c.do(ctx, http.MethodGet, "/api/csv/", f.Encode(), nil, &env); err != nil {
		return PageOf[CSVImport]{}, err
	}
	return pageOf(env.Imports, env.listMeta), nil
}

// DeleteImport removes an import and its prompts.
func (c *Client) DeleteImport(ctx context.Context, importID uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/csv/"+importID.String(), nil, nil, nil)
}

// Prompts

// ListPrompts returns one page of prompts matching the filter.
func (c *Client) ListPrompts(ctx context.Context, f PromptFilter) (PageOf[Prompt], error) {
	var env struct {
		Prompts []Prompt `json:"prompts"`
		listMeta
	}
	if err := c.do(ctx, http.MethodGet, "/api/prompts/", f.Encode(), nil, &env); err != nil {
		return PageOf[Prompt]{}, err
	}
	return pageOf(env.Prompts, env.listMeta), nil
}

// GetPrompt fetches one prompt with its matches.
func (c *Client) GetPrompt(ctx context.Context, id uuid.UUID) (Prompt, error) {
	var out Prompt
	err := c.do(ctx, http.MethodGet, "/api/prompts/"+id.String(), nil, nil, &out)
	return out, err
}

// ListTopics returns the prompt topics for a project with their counts.
func (c *Client) ListTopics(ctx context.Context, projectID uuid.UUID) (map[string]int64, error) {
	q := url.Values{}
	if projectID != uuid.Nil {
		q.Set("project_id", projectID.String())
	}
	var env struct {
		Topics map[string]int64 `json:"topics"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/prompts/topics/list", q, nil, &env); err != nil {
		return nil, err
	}
	return env.Topics, nil
}

// ListLanguages returns the detected prompt languages for a project with
// their counts.
func (c *Client) ListLanguages(ctx context.Context, projectID uuid.UUID) (map[string]int64, error) {
	q := url.Values{}
	if projectID != uuid.Nil {
		q.Set("project_id", projectID.String())
	}
	var env struct {
		Languages map[string]int64 `json:"languages"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/prompts/languages/list", q, nil, &env); err != nil {
		return nil, err
	}
	return env.Languages, nil
}

// ReclassifyAll re-runs intent classification over a project's prompts. The
// backend performs this inline and returns the updated count.
func (c *Client) ReclassifyAll(ctx context.Context, projectID uuid.UUID) (ReclassifyResult, error) {
	q := url.Values{}
	if projectID != uuid.Nil {
		q.Set("project_id", projectID.String())
	}
	var out ReclassifyResult
	err := c.do(ctx, http.MethodPost, "/api/prompts/reclassify-all", q, nil, &out)
	return out, err
}

// ReclassifyPrompt re-runs intent classification for one prompt.
func (c *Client) ReclassifyPrompt(ctx context.Context, id uuid.UUID) (Prompt, error) {
	var out Prompt
	err := c.do(ctx, http.MethodPost, "/api/prompts/"+id.String()+"/reclassify", nil, nil, &out)
	return out, err
}

// Pages

// ListPages returns one page of crawled pages matching the filter.
func (c *Client) ListPages(ctx context.Context, f PageFilter) (PageOf[Page], error) {
	var env struct {
		Pages []Page `json:"pages"`
		listMeta
	}
	if err := c.do(ctx, http.MethodGet, "/api/pages/", f.Encode(), nil, &env); err != nil {
		return PageOf[Page]{}, err
	}
	return pageOf(env.Pages, env.listMeta), nil
}

// GetPage fetches one crawled page.
func (c *Client) GetPage(ctx context.Context, id uuid.UUID) (Page, error) {
	var out Page
	err := c.do(ctx, http.MethodGet, "/api/pages/"+id.String(), nil, nil, &out)
	return out, err
}

// PageStats aggregates the crawled corpus for a project.
func (c *Client) PageStats(ctx context.Context, projectID uuid.UUID) (PageStats, error) {
	q := url.Values{}
	if projectID != uuid.Nil {
		q.Set("project_id", projectID.String())
	}
	var out PageStats
	err := c.do(ctx, http.MethodGet, "/api/pages/stats", q, nil, &out)
	return out, err
}

// DeletePage removes one crawled page.
func (c *Client) DeletePage(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/pages/"+id.String(), nil, nil, nil)
}

// ListCrawlJobs returns one page of crawl jobs for a project.
func (c *Client) ListCrawlJobs(ctx context.Context, projectID uuid.UUID, p PageParams) (PageOf[CrawlJob], error) {
	q := url.Values{}
	if projectID != uuid.Nil {
		q.Set("project_id", projectID.String())
	}
	p.apply(q)
	var env struct {
		CrawlJobs []CrawlJob `json:"crawl_jobs"`
		listMeta
	}
	if err := c.do(ctx, http.MethodGet, "/api/pages/crawl-jobs/list", q, nil, &env); err != nil {
		return PageOf[CrawlJob]{}, err
	}
	return pageOf(env.CrawlJobs, env.listMeta), nil
}

// CancelCrawlJob requests cancellation of a running crawl.
func (c *Client) CancelCrawlJob(ctx context.Context, id uuid.UUID) (CrawlJobCancelled, error) {
	var out CrawlJobCancelled
	err := c.do(ctx, http.MethodPost, "/api/pages/crawl-jobs/"+id.String()+"/cancel", nil, nil, &out)
	return out, err
}

// ListOrphanPages returns pages whose best prompt match falls below the
// threshold; zero threshold keeps the backend default.
func (c *Client) ListOrphanPages(ctx context.Context, projectID uuid.UUID, threshold float64, p PageParams) (OrphanPageList, error) {
	q := url.Values{}
	q.Set("project_id", projectID.String())
	if threshold > 0 {
		q.Set("min_match_threshold", strconv.FormatFloat(threshold, 'f', -1, 64))
	}
	p.apply(q)
	var out OrphanPageList
	err := c.do(ctx, http.MethodGet, "/api/pages/orphan-pages", q, nil, &out)
	return out, err
}

// GenerateOrphanSuggestions asks the backend for prompt suggestions covering
// one orphan page. The backend generates these inline.
func (c *Client) GenerateOrphanSuggestions(ctx context.Context, pageID uuid.UUID) (OrphanSuggestion, error) {
	var out OrphanSuggestion
	err := c.do(ctx, http.MethodPost, "/api/pages/orphan-pages/"+pageID.String()+"/generate-suggestions", nil, nil, &out)
	return out, err
}

// Opportunities

// ListOpportunities returns one page of opportunities matching the filter.
func (c *Client) ListOpportunities(ctx context.Context, f OpportunityFilter) (PageOf[Opportunity], error) {
	var env struct {
		Opportunities []Opportunity `json:"opportunities"`
		listMeta
	}
	if err := c.do(ctx, http.MethodGet, "/api/opportunities/", f.Encode(), nil, &env); err != nil {
		return PageOf[Opportunity]{}, err
	}
	return pageOf(env.Opportunities, env.listMeta), nil
}

// GetOpportunity fetches one opportunity.
func (c *Client) GetOpportunity(ctx context.Context, id uuid.UUID) (Opportunity, error) {
	var out Opportunity
	err := c.do(ctx, http.MethodGet, "/api/opportunities/"+id.String(), nil, nil, &out)
	return out, err
}

// UpdateOpportunity patches an opportunity's triage fields.
func (c *Client) UpdateOpportunity(ctx context.Context, id uuid.UUID, in OpportunityUpdate) (Opportunity, error) {
	var out Opportunity
	err := c.do(ctx, http.MethodPatch, "/api/opportunities/"+id.String(), nil, in, &out)
	return out, err
}

// GenerateSuggestion generates a content suggestion for one opportunity. The
// backend performs this inline and returns the updated opportunity.
func (c *Client) GenerateSuggestion(ctx context.Context, id uuid.UUID) (Opportunity, error) {
	var out Opportunity
	err := c.do(ctx, http.MethodPost, "/api/opportunities/"+id.String()+"/generate-suggestion", nil, nil, &out)
	return out, err
}

// RegenerateSuggestions starts suggestion regeneration across a project.
func (c *Client) RegenerateSuggestions(ctx context.Context, projectID uuid.UUID) (TaskRef, error) {
	var out TaskRef
	err := c.do(ctx, http.MethodPost, "/api/opportunities/"+projectID.String()+"/regenerate-suggestions/", nil, nil, &out)
	return out, err
}

// ExportOpportunities streams the opportunity export in the given format
// ("csv" or "json") to w.
func (c *Client) ExportOpportunities(ctx context.Context, projectID uuid.UUID, format string, w io.Writer) error {
	q := url.Values{}
	if projectID != uuid.Nil {
		q.Set("project_id", projectID.String())
	}
	u := c.baseURL + "/api/opportunities/export/" + format
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("export opportunities: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return newAPIError(resp.StatusCode, raw)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

// Jobs

// JobStatus fetches a task's status and normalizes it into the canonical form.
func (c *Client) JobStatus(ctx context.Context, taskID string) (jobs.Status, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+taskID, nil, nil, &raw); err != nil {
		return jobs.Status{}, err
	}
	return jobs.Decode(taskID, raw)
}

// CancelJob asks the backend to revoke a task. Polling is stopped by the
// caller; the backend decides whether the task can actually be interrupted.
func (c *Client) CancelJob(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodDelete, "/api/jobs/"+taskID, nil, nil, nil)
}
