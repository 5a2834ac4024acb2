package api

import (
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// MatchStatus classifies how well existing site content answers a prompt.
type MatchStatus string

// Match statuses.
const (
	MatchPending  MatchStatus = "pending"
	MatchAnswered MatchStatus = "answered"
	MatchPartial  MatchStatus = "partial"
	MatchGap      MatchStatus = "gap"
)

// ImportStatus is the lifecycle of a CSV import.
type ImportStatus string

// Import statuses.
const (
	ImportPending    ImportStatus = "pending"
	ImportValidating ImportStatus = "validating"
	ImportProcessing ImportStatus = "processing"
	ImportCompleted  ImportStatus = "completed"
	ImportFailed     ImportStatus = "failed"
)

// CrawlStatus is the lifecycle of a crawl job.
type CrawlStatus string

// Crawl statuses.
const (
	CrawlPending   CrawlStatus = "pending"
	CrawlRunning   CrawlStatus = "running"
	CrawlPaused    CrawlStatus = "paused"
	CrawlCompleted CrawlStatus = "completed"
	CrawlFailed    CrawlStatus = "failed"
	CrawlCancelled CrawlStatus = "cancelled"
)

// OpportunityStatus is the triage lifecycle of a content opportunity.
type OpportunityStatus string

// Opportunity statuses.
const (
	OpportunityNew        OpportunityStatus = "new"
	OpportunityInProgress OpportunityStatus = "in_progress"
	OpportunityResolved   OpportunityStatus = "resolved"
	OpportunityDismissed  OpportunityStatus = "dismissed"
)

// RecommendedAction is the suggested remediation for a content gap.
type RecommendedAction string

// Recommended actions.
const (
	ActionCreateFAQ        RecommendedAction = "create_faq"
	ActionCreateArticle    RecommendedAction = "create_article"
	ActionCreateLanding    RecommendedAction = "create_landing_page"
	ActionExpandContent    RecommendedAction = "expand_content"
	ActionOptimizeExisting RecommendedAction = "optimize_existing"
)

// CrawlConfig bounds how a project's site is crawled.
type CrawlConfig struct {
	MaxPages      int      `json:"max_pages,omitempty"`
	RateLimit     float64  `json:"rate_limit,omitempty"`
	AllowedPaths  []string `json:"allowed_paths,omitempty"`
	ExcludedPaths []string `json:"excluded_paths,omitempty"`
	RespectRobots bool     `json:"respect_robots,omitempty"`
	Timeout       int      `json:"timeout,omitempty"`
	RenderJS      bool     `json:"render_js,omitempty"`
}

// Project is a tracked website plus its analysis configuration.
type Project struct {
	ID               uuid.UUID   `json:"id"`
	Name             string      `json:"name"`
	Description      string      `json:"description,omitempty"`
	TargetDomains    []string    `json:"target_domains"`
	CrawlConfig      CrawlConfig `json:"crawl_config"`
	PromptCount      int64       `json:"prompt_count"`
	PageCount        int64       `json:"page_count"`
	OpportunityCount int64       `json:"opportunity_count"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        *time.Time  `json:"updated_at,omitempty"`
}

// ProjectCreate is the payload for creating a project.
type ProjectCreate struct {
	Name          string       `json:"name"`
	Description   string       `json:"description,omitempty"`
	TargetDomains []string     `json:"target_domains"`
	CrawlConfig   *CrawlConfig `json:"crawl_config,omitempty"`
}

// ProjectUpdate carries the mutable project fields; nil means unchanged.
// CrawlConfig replaces the whole configuration when set.
type ProjectUpdate struct {
	Name          *string      `json:"name,omitempty"`
	Description   *string      `json:"description,omitempty"`
	TargetDomains []string     `json:"target_domains,omitempty"`
	CrawlConfig   *CrawlConfig `json:"crawl_config,omitempty"`
}

// ProjectStats is the aggregate dashboard for one project.
type ProjectStats struct {
	TotalPrompts          int64            `json:"total_prompts"`
	TotalPages            int64            `json:"total_pages"`
	ByIntent              map[string]int64 `json:"by_intent"`
	ByMatchStatus         map[string]int64 `json:"by_match_status"`
	ByLanguage            map[string]int64 `json:"by_language"`
	OpportunitiesByStatus map[string]int64 `json:"opportunities_by_status"`
	OpportunitiesByAction map[string]int64 `json:"opportunities_by_action"`
	HighPriorityCount     int64            `json:"high_priority_count"`
	HighTransactionCount  int64            `json:"high_transaction_count"`
}

// PromptMatch is one page matched against a prompt.
type PromptMatch struct {
	PageID         uuid.UUID `json:"page_id"`
	PageURL        string    `json:"page_url"`
	PageTitle      string    `json:"page_title,omitempty"`
	Score          float64   `json:"similarity_score"`
	MatchType      string    `json:"match_type,omitempty"`
	MatchedSnippet string    `json:"matched_snippet,omitempty"`
}

// OpportunityRef is the compact opportunity summary embedded in a prompt.
type OpportunityRef struct {
	ID            uuid.UUID         `json:"id"`
	PriorityScore float64           `json:"priority_score"`
	Action        RecommendedAction `json:"recommended_action"`
	Reason        string            `json:"reason,omitempty"`
	Status        OpportunityStatus `json:"status"`
}

// Prompt is one imported user prompt with its classification and matching.
type Prompt struct {
	ID               uuid.UUID       `json:"id"`
	Text             string          `json:"raw_text"`
	NormalizedText   string          `json:"normalized_text,omitempty"`
	Topic            string          `json:"topic,omitempty"`
	Category         string          `json:"category,omitempty"`
	Region           string          `json:"region,omitempty"`
	Language         string          `json:"language,omitempty"`
	IntentLabel      string          `json:"intent_label,omitempty"`
	TransactionScore float64         `json:"transaction_score"`
	PopularityScore  float64         `json:"popularity_score"`
	SentimentScore   float64         `json:"sentiment_score"`
	VisibilityScore  float64         `json:"visibility_score"`
	MatchStatus      MatchStatus     `json:"match_status"`
	BestMatchScore   *float64        `json:"best_match_score,omitempty"`
	Matches          []PromptMatch   `json:"matches,omitempty"`
	Opportunity      *OpportunityRef `json:"opportunity,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        *time.Time      `json:"updated_at,omitempty"`
}

// ReclassifyResult is the synchronous response of a project-wide
// reclassification.
type ReclassifyResult struct {
	Message      string `json:"message"`
	UpdatedCount int64  `json:"updated_count"`
}

// Page is one crawled site page.
type Page struct {
	ID              uuid.UUID        `json:"id"`
	ProjectID       uuid.UUID        `json:"project_id"`
	URL             string           `json:"url"`
	CanonicalURL    string           `json:"canonical_url,omitempty"`
	StatusCode      string           `json:"status_code,omitempty"`
	ContentType     string           `json:"content_type,omitempty"`
	Title           string           `json:"title,omitempty"`
	MetaDescription string           `json:"meta_description,omitempty"`
	WordCount       int64            `json:"word_count"`
	StructuredData  []map[string]any `json:"structured_data,omitempty"`
	MCPChecks       map[string]any   `json:"mcp_checks,omitempty"`
	HreflangTags    []map[string]any `json:"hreflang_tags,omitempty"`
	CrawledAt       *time.Time       `json:"crawled_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       *time.Time       `json:"updated_at,omitempty"`
}

// PageStats aggregates the crawled corpus.
type PageStats struct {
	Total        int64            `json:"total"`
	Successful   int64            `json:"successful"`
	Failed       int64            `json:"failed"`
	WithJSONLD   int64            `json:"with_jsonld"`
	WithHreflang int64            `json:"with_hreflang"`
	ByStatusCode map[string]int64 `json:"by_status_code"`
}

// OrphanPage is a crawled page no prompt matches well.
type OrphanPage struct {
	ID              uuid.UUID      `json:"id"`
	URL             string         `json:"url"`
	Title           string         `json:"title,omitempty"`
	MetaDescription string         `json:"meta_description,omitempty"`
	WordCount       int64          `json:"word_count"`
	BestMatchScore  *float64       `json:"best_match_score,omitempty"`
	MatchStatus     string         `json:"match_status"`
	CrawledAt       *time.Time     `json:"crawled_at,omitempty"`
	AISuggestion    map[string]any `json:"ai_suggestion,omitempty"`
}

// OrphanPageList is the orphan-page listing with its threshold context.
type OrphanPageList struct {
	OrphanPages       []OrphanPage `json:"orphan_pages"`
	Total             int64        `json:"total"`
	Page              int          `json:"page"`
	PageSize          int          `json:"page_size"`
	MinMatchThreshold float64      `json:"min_match_threshold"`
	AIEnabled         bool         `json:"ai_enabled"`
}

// OrphanSuggestion is the prompt suggestion generated for one orphan page.
type OrphanSuggestion struct {
	PageID     uuid.UUID      `json:"page_id"`
	URL        string         `json:"url"`
	Title      string         `json:"title,omitempty"`
	Suggestion map[string]any `json:"suggestion"`
}

// Opportunity is one detected content gap with its remediation guidance.
type Opportunity struct {
	ID                uuid.UUID         `json:"id"`
	PromptID          uuid.UUID         `json:"prompt_id"`
	PriorityScore     float64           `json:"priority_score"`
	DifficultyScore   float64           `json:"difficulty_score"`
	DifficultyFactors map[string]any    `json:"difficulty_factors,omitempty"`
	Action            RecommendedAction `json:"recommended_action"`
	Reason            string            `json:"reason,omitempty"`
	Status            OpportunityStatus `json:"status"`
	AssignedTo        string            `json:"assigned_to,omitempty"`
	Notes             string            `json:"notes,omitempty"`
	ContentSuggestion map[string]any    `json:"content_suggestion,omitempty"`
	RelatedPageIDs    []uuid.UUID       `json:"related_page_ids,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         *time.Time        `json:"updated_at,omitempty"`

	// Related prompt context, denormalized for display.
	PromptText             string   `json:"prompt_text,omitempty"`
	PromptTopic            string   `json:"prompt_topic,omitempty"`
	PromptIntent           string   `json:"prompt_intent,omitempty"`
	PromptTransactionScore *float64 `json:"prompt_transaction_score,omitempty"`
	PromptPopularityScore  *float64 `json:"prompt_popularity_score,omitempty"`
	PromptSentimentScore   *float64 `json:"prompt_sentiment_score,omitempty"`
}

// OpportunityUpdate carries the mutable triage fields; nil means unchanged.
type OpportunityUpdate struct {
	Status     *OpportunityStatus `json:"status,omitempty"`
	AssignedTo *string            `json:"assigned_to,omitempty"`
	Notes      *string            `json:"notes,omitempty"`
}

// CSVImport tracks one uploaded prompt file through processing.
type CSVImport struct {
	ID            uuid.UUID         `json:"id"`
	ProjectID     uuid.UUID         `json:"project_id"`
	Filename      string            `json:"filename"`
	Status        ImportStatus      `json:"status"`
	TotalRows     int64             `json:"total_rows"`
	ProcessedRows int64             `json:"processed_rows"`
	FailedRows    int64             `json:"failed_rows"`
	ColumnMapping map[string]string `json:"column_mapping,omitempty"`
	JobID         string            `json:"job_id,omitempty"`
	ErrorMessage  string            `json:"error_message,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     *time.Time        `json:"updated_at,omitempty"`
}

// CSVPreviewRow is one sampled row of an uploaded file.
type CSVPreviewRow struct {
	RowNumber int            `json:"row_number"`
	Data      map[string]any `json:"data"`
}

// CSVPreview is the upload response: a peek at the file plus the backend's
// suggested column mapping, confirmed or corrected before processing.
type CSVPreview struct {
	ImportID         uuid.UUID         `json:"import_id"`
	Filename         string            `json:"filename"`
	Columns          []string          `json:"columns"`
	PreviewRows      []CSVPreviewRow   `json:"preview_rows"`
	TotalRows        int64             `json:"total_rows"`
	SuggestedMapping map[string]string `json:"suggested_mapping"`
}

// CrawlJob is one crawl of a project's site.
type CrawlJob struct {
	ID           uuid.UUID   `json:"id"`
	ProjectID    uuid.UUID   `json:"project_id"`
	Status       CrawlStatus `json:"status"`
	TotalURLs    int64       `json:"total_urls"`
	CrawledURLs  int64       `json:"crawled_urls"`
	FailedURLs   int64       `json:"failed_urls"`
	ErrorMessage string      `json:"error_message,omitempty"`
	StartedAt    *time.Time  `json:"started_at,omitempty"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// CrawlJobCancelled acknowledges a cancellation request.
type CrawlJobCancelled struct {
	Status  string    `json:"status"`
	JobID   uuid.UUID `json:"job_id"`
	Message string    `json:"message"`
}

// TaskRef is the backend's acknowledgement of a started async operation.
type TaskRef struct {
	TaskID     string `json:"task_id"`
	CrawlJobID string `json:"crawl_job_id,omitempty"`
	ImportID   string `json:"import_id,omitempty"`
	JobID      string `json:"job_id,omitempty"`
	Status     string `json:"status,omitempty"`
}

// ID returns the pollable task identifier, whichever field carried it. An
// empty id means the backend completed the operation synchronously.
func (t TaskRef) ID() string {
	if t.TaskID != "" {
		return t.TaskID
	}
	return t.JobID
}

// PageOf is one page of a listing, assembled from the backend's per-entity
// envelope.
type PageOf[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Pages    int   `json:"pages"`
}

// listMeta carries the pagination fields every list envelope shares. The
// backend keys the items themselves by entity name (projects, prompts,
// pages, opportunities, imports, crawl_jobs), never by a generic key.
type listMeta struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Pages    int   `json:"pages"`
}

// pageOf assembles a PageOf from decoded items and envelope metadata,
// deriving the page count when the envelope omits it.
func pageOf[T any](items []T, m listMeta) PageOf[T] {
	if m.Pages == 0 && m.PageSize > 0 && m.Total > 0 {
		m.Pages = int((m.Total + int64(m.PageSize) - 1) / int64(m.PageSize))
	}
	return PageOf[T]{
		Items:    items,
		Total:    m.Total,
		Page:     m.Page,
		PageSize: m.PageSize,
		Pages:    m.Pages,
	}
}

// PageParams selects one page of a listing.
type PageParams struct {
	Page     int
	PageSize int
}

func (p PageParams) apply(q url.Values) {
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(p.PageSize))
	}
}

// PromptFilter narrows prompt listings; zero fields are omitted.
type PromptFilter struct {
	ProjectID           uuid.UUID
	CSVImportID         uuid.UUID
	Topic               string
	Language            string
	IntentLabel         string
	MatchStatus         MatchStatus
	MinTransactionScore float64
	Search              string
	PageParams
}

// Encode renders the filter as URL query parameters. The encoding doubles as
// the filter's cache identity.
func (f PromptFilter) Encode() url.Values {
	q := url.Values{}
	if f.ProjectID != uuid.Nil {
		q.Set("project_id", f.ProjectID.String())
	}
	if f.CSVImportID != uuid.Nil {
		q.Set("csv_import_id", f.CSVImportID.String())
	}
	if f.Topic != "" {
		q.Set("topic", f.Topic)
	}
	if f.Language != "" {
		q.Set("language", f.Language)
	}
	if f.IntentLabel != "" {
		q.Set("intent_label", f.IntentLabel)
	}
	if f.MatchStatus != "" {
		q.Set("match_status", string(f.MatchStatus))
	}
	if f.MinTransactionScore > 0 {
		q.Set("min_transaction_score", strconv.FormatFloat(f.MinTransactionScore, 'f', -1, 64))
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	f.apply(q)
	return q
}

// PageFilter narrows page listings. FilterType is one of successful, failed,
// with_jsonld, with_hreflang.
type PageFilter struct {
	ProjectID  uuid.UUID
	CrawlJobID uuid.UUID
	FilterType string
	Search     string
	PageParams
}

// Encode renders the filter as URL query parameters.
func (f PageFilter) Encode() url.Values {
	q := url.Values{}
	if f.ProjectID != uuid.Nil {
		q.Set("project_id", f.ProjectID.String())
	}
	if f.CrawlJobID != uuid.Nil {
		q.Set("crawl_job_id", f.CrawlJobID.String())
	}
	if f.FilterType != "" {
		q.Set("filter_type", f.FilterType)
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	f.apply(q)
	return q
}

// OpportunityFilter narrows opportunity listings.
type OpportunityFilter struct {
	ProjectID     uuid.UUID
	Status        OpportunityStatus
	Action        RecommendedAction
	MinPriority   float64
	MaxPriority   float64
	MaxDifficulty float64
	PageParams
}

// Encode renders the filter as URL query parameters.
func (f OpportunityFilter) Encode() url.Values {
	q := url.Values{}
	if f.ProjectID != uuid.Nil {
		q.Set("project_id", f.ProjectID.String())
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Action != "" {
		q.Set("recommended_action", string(f.Action))
	}
	if f.MinPriority > 0 {
		q.Set("min_priority", strconv.FormatFloat(f.MinPriority, 'f', -1, 64))
	}
	if f.MaxPriority > 0 {
		q.Set("max_priority", strconv.FormatFloat(f.MaxPriority, 'f', -1, 64))
	}
	if f.MaxDifficulty > 0 {
		q.Set("max_difficulty", strconv.FormatFloat(f.MaxDifficulty, 'f', -1, 64))
	}
	f.apply(q)
	return q
}

// ImportFilter narrows CSV import listings.
type ImportFilter struct {
	ProjectID uuid.UUID
	Status    ImportStatus
	PageParams
}

// Encode renders the filter as URL query parameters.
func (f ImportFilter) Encode() url.Values {
	q := url.Values{}
	if f.ProjectID != uuid.Nil {
		q.Set("project_id", f.ProjectID.String())
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	f.apply(q)
	return q
}
