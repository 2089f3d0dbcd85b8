package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/vantagehq/marketscope/api/schemas"
	"github.com/vantagehq/marketscope/internal/llmclient"
	"github.com/vantagehq/marketscope/internal/store"
)

// Segmentation scores how well the site speaks to distinct target
// segments. It owns the store's segment collection: the identified
// segments and the primary segment it selects feed the final report.
type Segmentation struct {
	*BaseAgent
}

func NewSegmentation(st *store.ContextStore, llm schemas.LLMClient, logger *zap.Logger) *Segmentation {
	a := &Segmentation{BaseAgent: NewBase("segmentation", []string{"website"}, 1.0, st, llm, logger)}
	a.bind(a)
	return a
}

var segmentationSpecs = []scoreSpec{
	{"segment_clarity", "Segment Clarity", 20},
	{"pain_point_coverage", "Pain Point Coverage", 25},
	{"segment_messaging", "Segment-Specific Messaging", 20},
	{"industry_pages", "Industry Page Quality", 20},
	{"use_case_articulation", "Use Case Articulation", 15},
}

func (a *Segmentation) Run(ctx context.Context) (*schemas.ModuleScore, error) {
	cfg := a.Store.Cfg()
	module := schemas.NewModuleScore("Segmentation Analysis", a.Weight())

	// Segment pages plus solutions pages plus anything with detected
	// segment mentions, with homepage/about for ICP inference.
	segmentPages := a.Store.PagesByType("segment")
	seen := make(map[string]bool, len(segmentPages))
	for _, p := range segmentPages {
		seen[p.URL] = true
	}
	allSegments := make(map[string]struct{})
	home := store.NormalizeURL(cfg.CompanyWebsite)
	for url, page := range a.Store.Pages() {
		for _, seg := range page.Segments {
			allSegments[seg] = struct{}{}
		}
		if seen[page.URL] {
			continue
		}
		switch {
		case page.PageType == "solutions",
			len(page.Segments) > 0,
			store.NormalizeURL(url) == home,
			strings.Contains(strings.ToLower(url), "/about"):
			segmentPages = append(segmentPages, page)
			seen[page.URL] = true
		}
	}

	segments := make([]string, 0, len(allSegments))
	for seg := range allSegments {
		segments = append(segments, seg)
	}
	sort.Strings(segments)

	if !a.LLMAvailable() {
		return a.fallback(module, segments, len(segmentPages)), nil
	}

	prompt := fmt.Sprintf(`You are a go-to-market strategist auditing segment targeting for %s (%s) in the %s industry.

Segment-related pages:
%s

Segment keywords detected in page text: %s

Respond in valid JSON:
{
  "scores": {
    "segment_clarity": {"score": 0-20, "notes": "...", "recommendation": "...", "page_url": "..."},
    "pain_point_coverage": {"score": 0-25, "notes": "...", "recommendation": "..."},
    "segment_messaging": {"score": 0-20, "notes": "...", "recommendation": "..."},
    "industry_pages": {"score": 0-20, "notes": "...", "recommendation": "..."},
    "use_case_articulation": {"score": 0-15, "notes": "...", "recommendation": "..."}
  },
  "identified_segments": [{"name": "...", "description": "...", "pain_points": ["..."], "coverage_score": 0-100, "pages_addressing": ["..."], "recommendations": ["..."]}],
  "primary_segment": {"name": "...", "justification": "...", "priority": "High|Medium|Low"},
  "gaps": ["..."],
  "recommendations": [{"issue": "...", "recommendation": "...", "impact": "High|Medium|Low", "effort": "High|Medium|Low"}],
  "analysis": "2-3 paragraph narrative"
}`, cfg.CompanyName, cfg.CompanyWebsite, cfg.Industry,
		a.segmentContent(segmentPages), commaJoinOr(segments, "None detected"))

	result, err := a.LLM.CompleteJSON(ctx, schemas.GenerationRequest{Prompt: prompt, MaxTokens: 4000})
	if err != nil {
		a.Logger.Warn("Segmentation analysis degraded to heuristics", zap.Error(err))
		return a.fallback(module, segments, len(segmentPages)), nil
	}

	module.Items = itemsFromScores(result, segmentationSpecs)

	var identified []schemas.SegmentInfo
	for _, entry := range llmclient.List(result, "identified_segments") {
		raw, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		identified = append(identified, schemas.SegmentInfo{
			Name:            llmclient.Str(raw, "name"),
			Description:     llmclient.Str(raw, "description"),
			PainPoints:      llmclient.StrList(raw, "pain_points"),
			CoverageScore:   llmclient.Num(raw, "coverage_score"),
			PagesAddressing: llmclient.StrList(raw, "pages_addressing"),
			Recommendations: llmclient.StrList(raw, "recommendations"),
		})
	}
	primary := llmclient.Obj(result, "primary_segment")
	a.Store.SetSegments(identified, llmclient.Str(primary, "name"))

	segURL := cfg.CompanyWebsite
	for url := range a.Store.Pages() {
		lower := strings.ToLower(url)
		if strings.Contains(lower, "/solutions") || strings.Contains(lower, "/industries") || strings.Contains(lower, "/use-cases") {
			segURL = url
			break
		}
	}
	module.Recommendations = recommendationsFrom(result, "Segmentation", segURL, schemas.KPILeadConversion)

	module.AnalysisText = llmclient.Str(result, "analysis")
	module.RawData = map[string]any{
		"segments_found":      segments,
		"segment_pages_count": len(segmentPages),
		"identified_segments": llmclient.List(result, "identified_segments"),
		"primary_segment":     primary,
		"gaps":                llmclient.List(result, "gaps"),
	}
	return module, nil
}

func (a *Segmentation) segmentContent(pages []*schemas.PageData) string {
	var parts []string
	for _, page := range pages {
		if len(parts) >= 8 {
			break
		}
		parts = append(parts, fmt.Sprintf(
			"--- SEGMENT PAGE: %s ---\nTitle: %s\nH1: %s\nH2: %s\nContent: %s\nDetected Segments: %s",
			page.URL, page.Title,
			strings.Join(page.H1Tags, ", "),
			strings.Join(firstN(page.H2Tags, 5), ", "),
			truncate(page.RawText, 3000),
			strings.Join(page.Segments, ", ")))
	}
	return truncate(strings.Join(parts, "\n"), 15000)
}

func (a *Segmentation) fallback(module *schemas.ModuleScore, segments []string, segmentPageCount int) *schemas.ModuleScore {
	site := a.Store.Cfg().CompanyWebsite
	clarityScore := minInt(len(segments)*3, 15)
	pageScore := minInt(segmentPageCount*5, 15)

	module.Items = []schemas.ScoreItem{
		{Name: "Segment Clarity", Description: "Clear target segment identification", MaxPoints: 20, ActualPoints: clarityScore,
			Notes: fmt.Sprintf("Detected %d segments: %s", len(segments), strings.Join(firstN(segments, 5), ", "))},
		{Name: "Pain Point Coverage", Description: "Segment pain points addressed", MaxPoints: 25, ActualPoints: 12, Notes: "Manual review recommended"},
		{Name: "Segment-Specific Messaging", Description: "Tailored messaging per segment", MaxPoints: 20, ActualPoints: 10, Notes: "Manual review recommended"},
		{Name: "Industry Page Quality", Description: "Dedicated industry/segment pages", MaxPoints: 20, ActualPoints: pageScore,
			Notes: fmt.Sprintf("Found %d segment-specific pages", segmentPageCount)},
		{Name: "Use Case Articulation", Description: "Clear use case documentation", MaxPoints: 15, ActualPoints: 7, Notes: "Manual review recommended"},
	}
	module.Recommendations = []schemas.Recommendation{
		{
			Issue:          "Segment targeting not assessed",
			Recommendation: "Create dedicated landing pages for each primary target segment with industry-specific language, pain points, and case studies",
			Impact:         schemas.ImpactHigh,
			Effort:         schemas.EffortHigh,
			Category:       "Segmentation",
			PageURL:        site,
			KPIImpact:      schemas.KPILeadConversion,
		},
		{
			Issue:          "Segment self-identification unclear",
			Recommendation: "Add an 'Industries' or 'Solutions by Role' section to the main navigation so visitors can self-select into their segment",
			Impact:         schemas.ImpactHigh,
			Effort:         schemas.EffortMedium,
			Category:       "Segmentation",
			PageURL:        site,
			KPIImpact:      schemas.KPILeadConversion,
		},
	}
	module.AnalysisText = fmt.Sprintf(
		"Basic segmentation analysis completed.\n\n**Segments Detected:** %s\n**Segment Pages Found:** %d\n\n"+
			"Detailed assessment of pain point coverage and messaging effectiveness requires manual review.",
		commaJoinOr(segments, "None explicitly identified"), segmentPageCount)
	module.RawData = map[string]any{
		"segments_found":      segments,
		"segment_pages_count": segmentPageCount,
		"primary_segment": map[string]any{
			"name":          firstOr(segments, "None identified"),
			"justification": "Most frequently detected segment keyword (heuristic)",
			"priority":      "Medium",
		},
	}

	if len(segments) > 0 {
		a.Store.SetSegments(nil, segments[0])
	}
	return module
}
