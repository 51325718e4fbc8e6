package model

import (
	"net/url"
	"strings"
	"time"
)

// ClientStatus is the enrichment state stored on a client record.
type ClientStatus string

const (
	ClientStatusPendingEnrichment ClientStatus = "pending_enrichment"
	ClientStatusEnriched          ClientStatus = "enriched"
	ClientStatusFailed            ClientStatus = "failed"
	ClientStatusCancelled         ClientStatus = "cancelled"
)

// ClientInput is the immutable input to a single enrichment run.
type ClientInput struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Website  string `json:"website" yaml:"website"`
	Industry string `json:"industry" yaml:"industry"`
}

// Validate checks the fields a run cannot start without. Industry is
// informational and may be empty.
func (c ClientInput) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return &ValidationError{Field: "id", Reason: "is required"}
	}
	if strings.TrimSpace(c.Name) == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if strings.TrimSpace(c.Website) == "" {
		return &ValidationError{Field: "website", Reason: "is required"}
	}
	u, err := url.Parse(c.Website)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: "website", Reason: "must be an absolute http(s) URL"}
	}
	return nil
}

// ClientRecord is the stored view of a client and its latest enrichment.
type ClientRecord struct {
	ID           string        `json:"id" yaml:"id"`
	Name         string        `json:"name" yaml:"name"`
	Website      string        `json:"website" yaml:"website"`
	Industry     string        `json:"industry" yaml:"industry"`
	Status       ClientStatus  `json:"status" yaml:"status"`
	EnrichedData *EnrichedData `json:"enriched_data,omitempty" yaml:"enriched_data,omitempty"`
	CreatedAt    time.Time     `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" yaml:"updated_at"`
}

// SocialMedia holds the company's social profile URLs.
type SocialMedia struct {
	LinkedIn string `json:"linkedin,omitempty" yaml:"linkedin,omitempty"`
	Twitter  string `json:"twitter,omitempty" yaml:"twitter,omitempty"`
}

// EnrichedData is the structured profile produced by a successful run.
// An undeterminable value is always represented by omission: empty strings,
// nil slices and a nil SocialMedia never carry meaning.
type EnrichedData struct {
	EmployeeCount string       `json:"employeeCount,omitempty" yaml:"employeeCount,omitempty"`
	Revenue       string       `json:"revenue,omitempty" yaml:"revenue,omitempty"`
	Founded       string       `json:"founded,omitempty" yaml:"founded,omitempty"`
	Description   string       `json:"description,omitempty" yaml:"description,omitempty"`
	SocialMedia   *SocialMedia `json:"socialMedia,omitempty" yaml:"socialMedia,omitempty"`
	Competitors   []string     `json:"competitors,omitempty" yaml:"competitors,omitempty"`
	Technologies  []string     `json:"technologies,omitempty" yaml:"technologies,omitempty"`
	Locations     []string     `json:"locations,omitempty" yaml:"locations,omitempty"`
}

// EnrichedDataKeys lists every key an EnrichedData object may carry.
var EnrichedDataKeys = []string{
	"employeeCount",
	"revenue",
	"founded",
	"description",
	"socialMedia",
	"competitors",
	"technologies",
	"locations",
}

// Keys returns the keys that are present, in EnrichedDataKeys order.
func (d *EnrichedData) Keys() []string {
	if d == nil {
		return nil
	}
	var keys []string
	add := func(key string, present bool) {
		if present {
			keys = append(keys, key)
		}
	}
	add("employeeCount", d.EmployeeCount != "")
	add("revenue", d.Revenue != "")
	add("founded", d.Founded != "")
	add("description", d.Description != "")
	add("socialMedia", d.SocialMedia != nil)
	add("competitors", len(d.Competitors) > 0)
	add("technologies", len(d.Technologies) > 0)
	add("locations", len(d.Locations) > 0)
	return keys
}

// EnrichmentContext is the state threaded through the pipeline stages.
// Each With* method returns a copy with exactly one more field populated;
// stages never clear a field set by an earlier stage.
type EnrichmentContext struct {
	Client             ClientInput
	ScrapedContent     string
	BasicSearchResults string
	NewsResults        string
	DeepSearchResults  string
	AnalysisText       string
	EnrichedData       *EnrichedData
}

// NewEnrichmentContext seeds a context for the given client.
func NewEnrichmentContext(client ClientInput) EnrichmentContext {
	return EnrichmentContext{Client: client}
}

// WithScrapedContent records the website text from the scrape stage.
func (ec EnrichmentContext) WithScrapedContent(s string) EnrichmentContext {
	ec.ScrapedContent = s
	return ec
}

// WithSearchResults records the general web and news search summaries
// together, since both come from the same parallel stage.
func (ec EnrichmentContext) WithSearchResults(basic, news string) EnrichmentContext {
	ec.BasicSearchResults = basic
	ec.NewsResults = news
	return ec
}

// WithDeepSearchResults records the deep research output.
func (ec EnrichmentContext) WithDeepSearchResults(s string) EnrichmentContext {
	ec.DeepSearchResults = s
	return ec
}

// WithAnalysisText records the model's free-text analysis ahead of
// structured extraction.
func (ec EnrichmentContext) WithAnalysisText(s string) EnrichmentContext {
	ec.AnalysisText = s
	return ec
}

// WithEnrichedData records the decoded profile. A nil d leaves the context
// without a profile.
func (ec EnrichmentContext) WithEnrichedData(d *EnrichedData) EnrichmentContext {
	ec.EnrichedData = d
	return ec
}
