package schemas

import (
	"math"
	"sort"
	"strings"
)

// Outcome is the consulting-style verdict derived from a module percentage.
type Outcome string

const (
	OutcomeAuthority     Outcome = "Market Authority"      // >= 95
	OutcomeLeader        Outcome = "Category Leader"       // >= 90
	OutcomeContender     Outcome = "Strong Contender"      // >= 80
	OutcomeRiskDilution  Outcome = "Market Dilution Risk"  // >= 70
	OutcomeRiskCommodity Outcome = "Commoditized Player"   // >= 60
	OutcomeGapAuthority  Outcome = "Critical Authority Gap" // < 60, trust/social modules
	OutcomeGapConversion Outcome = "Revenue Leak"          // < 60, conversion modules
	OutcomeGapVisibility Outcome = "Invisible Player"      // < 60, everything else
)

// Grade is the letter-grade ladder kept alongside outcomes for display.
type Grade string

const (
	GradeAPlus  Grade = "A+"
	GradeA      Grade = "A"
	GradeAMinus Grade = "A-"
	GradeBPlus  Grade = "B+"
	GradeB      Grade = "B"
	GradeBMinus Grade = "B-"
	GradeCPlus  Grade = "C+"
	GradeC      Grade = "C"
	GradeCMinus Grade = "C-"
	GradeD      Grade = "D"
	GradeF      Grade = "F"
)

// Impact and Effort rate a recommendation for prioritization.
type Impact string

const (
	ImpactHigh   Impact = "High"
	ImpactMedium Impact = "Medium"
	ImpactLow    Impact = "Low"
)

type Effort string

const (
	EffortHigh   Effort = "High"
	EffortMedium Effort = "Medium"
	EffortLow    Effort = "Low"
)

// MatrixPlacement is the impact/effort 2x2 quadrant.
type MatrixPlacement string

const (
	PlacementQuickWin     MatrixPlacement = "Quick Win"         // high impact, low effort
	PlacementStrategicBet MatrixPlacement = "Strategic Bet"     // high impact, high effort
	PlacementLowHanging   MatrixPlacement = "Low Hanging Fruit" // low impact, low effort
	PlacementDistraction  MatrixPlacement = "Distraction"       // low impact, high effort
)

// KPI names the business metric a recommendation moves.
type KPI string

const (
	KPICloseRate      KPI = "Close Rate"
	KPITraffic        KPI = "Website Traffic"
	KPILeadConversion KPI = "Lead Conversion"
	KPIBrandAwareness KPI = "Brand Awareness"
	KPICustomerTrust  KPI = "Customer Trust"
	KPIEngagement     KPI = "Engagement"
	KPISEORanking     KPI = "SEO Ranking"
)

// Recommendation is a single actionable finding with prioritization data.
type Recommendation struct {
	Issue          string `json:"issue"`
	Recommendation string `json:"recommendation"`
	Impact         Impact `json:"impact"`
	Effort         Effort `json:"effort"`
	BusinessImpact string `json:"business_impact,omitempty"`
	Category       string `json:"category,omitempty"`
	PageURL        string `json:"page_url,omitempty"`
	KPIImpact      KPI    `json:"kpi_impact,omitempty"`
}

// PriorityScore combines impact and effort; higher means do it sooner.
func (r Recommendation) PriorityScore() int {
	impact := map[Impact]int{ImpactHigh: 3, ImpactMedium: 2, ImpactLow: 1}
	effort := map[Effort]int{EffortHigh: 1, EffortMedium: 2, EffortLow: 3}
	return impact[r.Impact] * effort[r.Effort]
}

// Placement maps the recommendation into the impact/effort matrix.
func (r Recommendation) Placement() MatrixPlacement {
	if r.Impact == ImpactHigh {
		if r.Effort == EffortLow {
			return PlacementQuickWin
		}
		return PlacementStrategicBet
	}
	if r.Effort == EffortLow {
		return PlacementLowHanging
	}
	return PlacementDistraction
}

// ScoreItem is one scored criterion inside a module.
type ScoreItem struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	MaxPoints      int    `json:"max_points"`
	ActualPoints   int    `json:"actual_points"`
	Notes          string `json:"notes,omitempty"`
	Recommendation string `json:"recommendation,omitempty"`
	BusinessImpact string `json:"business_impact,omitempty"`
	PageURL        string `json:"page_url,omitempty"`
}

// ModuleScore is the structured output of one agent: scored criteria,
// prioritized recommendations, free-text narrative, and a raw-data payload
// for cross-agent consumption. Percentage, outcome, and grade are always
// derived, never stored.
type ModuleScore struct {
	Name            string           `json:"name"`
	Weight          float64          `json:"weight"`
	Items           []ScoreItem      `json:"items"`
	Recommendations []Recommendation `json:"recommendations"`
	AnalysisText    string           `json:"analysis_text"`
	RawData         map[string]any   `json:"raw_data,omitempty"`
}

// NewModuleScore creates an empty module score with its raw-data map ready.
func NewModuleScore(name string, weight float64) *ModuleScore {
	return &ModuleScore{Name: name, Weight: weight, RawData: make(map[string]any)}
}

func (m *ModuleScore) MaxPoints() int {
	total := 0
	for _, item := range m.Items {
		total += item.MaxPoints
	}
	return total
}

func (m *ModuleScore) ActualPoints() int {
	total := 0
	for _, item := range m.Items {
		total += item.ActualPoints
	}
	return total
}

func (m *ModuleScore) Percentage() float64 {
	max := m.MaxPoints()
	if max == 0 {
		return 0
	}
	return float64(m.ActualPoints()) / float64(max) * 100
}

func (m *ModuleScore) WeightedPoints() float64 { return float64(m.ActualPoints()) * m.Weight }
func (m *ModuleScore) WeightedMax() float64    { return float64(m.MaxPoints()) * m.Weight }

// Outcome maps the module percentage onto the consulting ladder. Failing
// modules resolve to a gap flavored by the module's name.
func (m *ModuleScore) Outcome() Outcome {
	pct := m.Percentage()
	switch {
	case pct >= 95:
		return OutcomeAuthority
	case pct >= 90:
		return OutcomeLeader
	case pct >= 80:
		return OutcomeContender
	case pct >= 70:
		return OutcomeRiskDilution
	case pct >= 60:
		return OutcomeRiskCommodity
	}
	name := strings.ToLower(m.Name)
	switch {
	case strings.Contains(name, "trust") || strings.Contains(name, "social"):
		return OutcomeGapAuthority
	case strings.Contains(name, "conversion"):
		return OutcomeGapConversion
	default:
		return OutcomeGapVisibility
	}
}

// Grade maps the module percentage onto the letter ladder.
func (m *ModuleScore) Grade() Grade { return gradeFor(m.Percentage()) }

func gradeFor(pct float64) Grade {
	switch {
	case pct >= 97:
		return GradeAPlus
	case pct >= 93:
		return GradeA
	case pct >= 90:
		return GradeAMinus
	case pct >= 87:
		return GradeBPlus
	case pct >= 83:
		return GradeB
	case pct >= 80:
		return GradeBMinus
	case pct >= 77:
		return GradeCPlus
	case pct >= 73:
		return GradeC
	case pct >= 70:
		return GradeCMinus
	case pct >= 60:
		return GradeD
	default:
		return GradeF
	}
}

// UniformScores reports whether every item scores the same rounded ratio.
// Used by critique as a superficial-analysis heuristic.
func (m *ModuleScore) UniformScores() bool {
	if len(m.Items) <= 3 {
		return false
	}
	seen := make(map[float64]struct{})
	for _, item := range m.Items {
		ratio := 0.0
		if item.MaxPoints > 0 {
			ratio = math.Round(float64(item.ActualPoints)/float64(item.MaxPoints)*10) / 10
		}
		seen[ratio] = struct{}{}
	}
	return len(seen) == 1
}

// StrategicFriction is the synthesized cross-module diagnosis attached to
// the final report.
type StrategicFriction struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	PrimarySymptom string `json:"primary_symptom"`
	BusinessImpact string `json:"business_impact"`
}

// AuditReport is the externally observable output of a run: company
// identity, per-module results in display order, and one synthesized
// friction finding.
type AuditReport struct {
	RunID             string             `json:"run_id"`
	CompanyName       string             `json:"company_name"`
	CompanyWebsite    string             `json:"company_website"`
	Industry          string             `json:"industry"`
	AuditDate         string             `json:"audit_date"`
	AnalystName       string             `json:"analyst_name,omitempty"`
	AnalystCompany    string             `json:"analyst_company,omitempty"`
	Modules           []*ModuleScore     `json:"modules"`
	StrategicFriction *StrategicFriction `json:"strategic_friction,omitempty"`
}

func (r *AuditReport) TotalWeightedPoints() float64 {
	total := 0.0
	for _, m := range r.Modules {
		total += m.WeightedPoints()
	}
	return total
}

func (r *AuditReport) TotalWeightedMax() float64 {
	total := 0.0
	for _, m := range r.Modules {
		total += m.WeightedMax()
	}
	return total
}

func (r *AuditReport) OverallPercentage() float64 {
	max := r.TotalWeightedMax()
	if max == 0 {
		return 0
	}
	return r.TotalWeightedPoints() / max * 100
}

func (r *AuditReport) OverallGrade() Grade { return gradeFor(r.OverallPercentage()) }

func (r *AuditReport) OverallOutcome() Outcome {
	pct := r.OverallPercentage()
	switch {
	case pct >= 95:
		return OutcomeAuthority
	case pct >= 90:
		return OutcomeLeader
	case pct >= 80:
		return OutcomeContender
	case pct >= 70:
		return OutcomeRiskDilution
	case pct >= 60:
		return OutcomeRiskCommodity
	default:
		return OutcomeGapAuthority
	}
}

// ModuleByName returns the named module, or nil.
func (r *AuditReport) ModuleByName(name string) *ModuleScore {
	for _, m := range r.Modules {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// AllRecommendations flattens module recommendations, stamps each with its
// module category, and sorts by descending priority.
func (r *AuditReport) AllRecommendations() []Recommendation {
	var recs []Recommendation
	for _, m := range r.Modules {
		for _, rec := range m.Recommendations {
			rec.Category = m.Name
			recs = append(recs, rec)
		}
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].PriorityScore() > recs[j].PriorityScore()
	})
	return recs
}

// MatrixRecommendations groups recommendations by 2x2 quadrant.
func (r *AuditReport) MatrixRecommendations() map[MatrixPlacement][]Recommendation {
	matrix := map[MatrixPlacement][]Recommendation{
		PlacementQuickWin:     nil,
		PlacementStrategicBet: nil,
		PlacementLowHanging:   nil,
		PlacementDistraction:  nil,
	}
	for _, rec := range r.AllRecommendations() {
		matrix[rec.Placement()] = append(matrix[rec.Placement()], rec)
	}
	return matrix
}

// QuickWins returns up to n high-impact low-effort recommendations,
// topping up from the low-effort quadrant when there are too few.
func (r *AuditReport) QuickWins(n int) []Recommendation {
	matrix := r.MatrixRecommendations()
	wins := matrix[PlacementQuickWin]
	if len(wins) < n {
		wins = append(wins, matrix[PlacementLowHanging]...)
	}
	if len(wins) > n {
		wins = wins[:n]
	}
	return wins
}

// TopStrengths lists the highest-scoring criteria (>= 80%) across modules.
func (r *AuditReport) TopStrengths(n int) []string {
	return r.rankedItems(n, func(pct float64) bool { return pct >= 80 }, true)
}

// CriticalGaps lists the lowest-scoring criteria (< 60%) across modules.
func (r *AuditReport) CriticalGaps(n int) []string {
	return r.rankedItems(n, func(pct float64) bool { return pct < 60 }, false)
}

func (r *AuditReport) rankedItems(n int, keep func(float64) bool, descending bool) []string {
	type ranked struct {
		label string
		pct   float64
	}
	var items []ranked
	for _, m := range r.Modules {
		for _, item := range m.Items {
			if item.MaxPoints == 0 {
				continue
			}
			pct := float64(item.ActualPoints) / float64(item.MaxPoints) * 100
			if !keep(pct) {
				continue
			}
			label := m.Name + ": " + item.Name
			if item.Notes != "" {
				label += " - " + item.Notes
			}
			items = append(items, ranked{label, pct})
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if descending {
			return items[i].pct > items[j].pct
		}
		return items[i].pct < items[j].pct
	})
	out := make([]string, 0, n)
	for i := 0; i < len(items) && i < n; i++ {
		out = append(out, items[i].label)
	}
	return out
}
