package schemas

import (
	"fmt"
	"time"
)

// AgentStatus tracks the lifecycle of an agent's analysis record.
type AgentStatus string

const (
	StatusPending       AgentStatus = "pending"
	StatusRunning       AgentStatus = "running"
	StatusCompleted     AgentStatus = "completed"
	StatusFailed        AgentStatus = "failed"
	StatusNeedsRevision AgentStatus = "needs_revision"
)

// ScreenshotType distinguishes full-page captures from element captures.
type ScreenshotType string

const (
	ScreenshotFullPage ScreenshotType = "full_page"
	ScreenshotElement  ScreenshotType = "element"
)

// Image describes an image found on a crawled page.
type Image struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// CTA is a call-to-action element (link or button) detected on a page.
type CTA struct {
	Text    string `json:"text"`
	Href    string `json:"href"`
	PageURL string `json:"page_url,omitempty"`
}

// FormField describes a single input inside a detected form.
type FormField struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// Form is a lead-capture or contact form detected on a page.
type Form struct {
	Action  string      `json:"action"`
	Method  string      `json:"method"`
	Fields  []FormField `json:"fields"`
	PageURL string      `json:"page_url,omitempty"`
}

// PageData holds everything extracted from a single crawled page.
// Populated exclusively by the crawl collaborator; read-only for agents.
type PageData struct {
	URL             string            `json:"url"`
	Title           string            `json:"title"`
	MetaDescription string            `json:"meta_description"`
	MetaKeywords    string            `json:"meta_keywords"`
	H1Tags          []string          `json:"h1_tags"`
	H2Tags          []string          `json:"h2_tags"`
	H3Tags          []string          `json:"h3_tags"`
	Paragraphs      []string          `json:"paragraphs"`
	Links           []string          `json:"links"`
	InternalLinks   []string          `json:"internal_links"`
	ExternalLinks   []string          `json:"external_links"`
	Images          []Image           `json:"images"`
	CTAs            []CTA             `json:"ctas"`
	SocialLinks     map[string]string `json:"social_links"`
	Forms           []Form            `json:"forms"`
	Testimonials    []string          `json:"testimonials"`
	LoadTime        time.Duration     `json:"load_time"`
	StatusCode      int               `json:"status_code"`
	ContentLength   int               `json:"content_length"`
	HasSchema       bool              `json:"has_schema"`
	HasViewport     bool              `json:"has_viewport"`
	SchemaTypes     []string          `json:"schema_types"`
	RawText         string            `json:"raw_text"`
	PageType        string            `json:"page_type"`
	Segments        []string          `json:"segments"`
}

// ScreenshotData is a screenshot record. An agent creates it as an empty
// request; the render collaborator fills in the payload after the analysis
// phases complete.
type ScreenshotData struct {
	URL             string         `json:"url"`
	Type            ScreenshotType `json:"type"`
	ElementSelector string         `json:"element_selector,omitempty"`
	Base64Data      string         `json:"base64_data,omitempty"`
	Width           int            `json:"width,omitempty"`
	Height          int            `json:"height,omitempty"`
	CapturedAt      time.Time      `json:"captured_at,omitzero"`
	Notes           string         `json:"notes,omitempty"`
}

// Key builds the composite store key for a screenshot record.
func (s ScreenshotData) Key() string {
	key := fmt.Sprintf("%s:%s", s.URL, s.Type)
	if s.ElementSelector != "" {
		key += ":" + s.ElementSelector
	}
	return key
}

// Pending reports whether this record is still an unfulfilled request.
func (s ScreenshotData) Pending() bool {
	return s.Base64Data == "" && s.Notes == ""
}

// SegmentInfo describes one identified target segment. Written only by the
// segmentation agent; read by downstream agents and the report.
type SegmentInfo struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	PainPoints      []string `json:"pain_points"`
	CoverageScore   float64  `json:"coverage_score"`
	PagesAddressing []string `json:"pages_addressing"`
	Recommendations []string `json:"recommendations"`
}

// CriticalPage is one of the graded top pages. Written only by the
// top-pages agent; its Screenshot field is linked in by the orchestrator.
type CriticalPage struct {
	PageType        string          `json:"page_type"`
	URL             string          `json:"url"`
	Grade           string          `json:"grade"`
	Score           float64         `json:"score"`
	MaxScore        float64         `json:"max_score"`
	Screenshot      *ScreenshotData `json:"screenshot,omitempty"`
	Strengths       []string        `json:"strengths"`
	Weaknesses      []string        `json:"weaknesses"`
	Recommendations []string        `json:"recommendations"`
}

// ResourceEntry is a landing page or gated-content asset recorded by the
// resource-hub agent.
type ResourceEntry struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	AssetType string `json:"asset_type"`
	Gated     bool   `json:"gated"`
}

// CompetitorProfile is one competitor record captured during competitive
// analysis, either configured up front or discovered mid-run.
type CompetitorProfile struct {
	Name       string   `json:"name"`
	URL        string   `json:"url"`
	Discovered bool     `json:"discovered"`
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`
	Notes      string   `json:"notes"`
}
