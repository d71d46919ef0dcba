package generator

import "github.com/fthyco/simorg/internal/kernel"

// CapacityProfile selects the target constraint baseline the generator
// compiles toward.
type CapacityProfile string

const (
	CapacityLow      CapacityProfile = "low"
	CapacityBalanced CapacityProfile = "balanced"
	CapacityHigh     CapacityProfile = "high"
)

// TemplateSpec parameterizes a single compilation run. All density
// figures are SCALE-relative fixed-point integers, matching the kernel's
// own fixed-point convention.
//
// DriftMode, DifferentiationPressure and InterDensityTarget are accepted
// and round-tripped through ToMap for forward compatibility with callers
// that already serialize them, but no compiler step reads them: nothing
// in this package performs semantic drift detection or differentiation
// scheduling, and intra-department density is the only density target
// the density-fill pass consults.
type TemplateSpec struct {
	RoleCount                int
	DomainCount              int
	IntraDensityTarget       int64
	InterDensityTarget       int64
	CapacityProfile          CapacityProfile
	FragilityMode            bool
	DriftMode                bool
	ShockMagnitude           int64
	DifferentiationPressure  int64
}

// ToMap renders the spec as a plain map for JSON export, mirroring the
// original compiler's to_dict.
func (t TemplateSpec) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"role_count":               t.RoleCount,
		"domain_count":             t.DomainCount,
		"intra_density_target":     t.IntraDensityTarget,
		"inter_density_target":     t.InterDensityTarget,
		"capacity_profile":         string(t.CapacityProfile),
		"fragility_mode":           t.FragilityMode,
		"drift_mode":               t.DriftMode,
		"shock_magnitude":          t.ShockMagnitude,
		"differentiation_pressure": t.DifferentiationPressure,
	}
}

// RoleBlueprint is one role definition inside a DeptBlueprint.
type RoleBlueprint struct {
	IDSuffix         string
	Name             string
	Purpose          string
	Responsibilities []string
	ProducedOutputs  []string
	RequiredInputs   []string
}

// DeptBlueprint groups a department's roles under a display name used
// only for the generated department_map, never for clustering.
type DeptBlueprint struct {
	Name  string
	Roles []RoleBlueprint
}

// DependencyBlueprint describes one natural dependency between two
// blueprint role ids.
type DependencyBlueprint struct {
	FromRole string
	ToRole   string
	Type     kernel.DependencyType
	Critical bool
}

// IndustryTemplate is a complete org blueprint for one industry/stage
// pairing, ready to compile into an event stream.
type IndustryTemplate struct {
	Industry     string
	Stage        string
	Departments  []DeptBlueprint
	Dependencies []DependencyBlueprint
}

// TechSaaSSeed is a small illustrative blueprint for a seed-stage SaaS
// company, used by tests and the CLI demo. It is not a catalogue: callers
// needing other industries or stages supply their own IndustryTemplate.
func TechSaaSSeed() IndustryTemplate {
	return IndustryTemplate{
		Industry: "tech_saas",
		Stage:    "seed",
		Departments: []DeptBlueprint{
			{
				Name: "Product & Engineering",
				Roles: []RoleBlueprint{
					{
						IDSuffix:         "cto",
						Name:             "CTO / Tech Lead",
						Purpose:          "Technical vision and architecture",
						Responsibilities: []string{"system_design", "code_review", "tech_strategy"},
						ProducedOutputs:  []string{"architecture_docs", "technical_decisions"},
						RequiredInputs:   []string{"product_requirements"},
					},
					{
						IDSuffix:         "fullstack_1",
						Name:             "Full-Stack Developer",
						Purpose:          "Core product development",
						Responsibilities: []string{"feature_development", "bug_fixes", "deployment"},
						ProducedOutputs:  []string{"shipped_features", "code_commits"},
						RequiredInputs:   []string{"architecture_docs", "design_specs"},
					},
					{
						IDSuffix:         "fullstack_2",
						Name:             "Full-Stack Developer II",
						Purpose:          "Product feature delivery",
						Responsibilities: []string{"feature_development", "testing", "api_design"},
						ProducedOutputs:  []string{"shipped_features", "api_endpoints"},
						RequiredInputs:   []string{"architecture_docs"},
					},
				},
			},
			{
				Name: "Business & Growth",
				Roles: []RoleBlueprint{
					{
						IDSuffix:         "ceo",
						Name:             "CEO / Founder",
						Purpose:          "Company vision and fundraising",
						Responsibilities: []string{"fundraising", "strategy", "hiring", "customer_discovery"},
						ProducedOutputs:  []string{"company_strategy", "funding"},
						RequiredInputs:   []string{"market_data", "financial_reports"},
					},
					{
						IDSuffix:         "growth_lead",
						Name:             "Growth Lead",
						Purpose:          "User acquisition and retention",
						Responsibilities: []string{"marketing", "analytics", "outreach"},
						ProducedOutputs:  []string{"growth_metrics", "campaigns"},
						RequiredInputs:   []string{"product_updates", "company_strategy"},
					},
				},
			},
		},
		Dependencies: []DependencyBlueprint{
			{FromRole: "ceo", ToRole: "cto", Type: kernel.DependencyGovernance, Critical: true},
			{FromRole: "cto", ToRole: "fullstack_1", Type: kernel.DependencyOperational, Critical: true},
			{FromRole: "cto", ToRole: "fullstack_2", Type: kernel.DependencyOperational, Critical: false},
			{FromRole: "growth_lead", ToRole: "ceo", Type: kernel.DependencyInformation, Critical: false},
			{FromRole: "fullstack_1", ToRole: "fullstack_2", Type: kernel.DependencyOperational, Critical: false},
			{FromRole: "growth_lead", ToRole: "fullstack_1", Type: kernel.DependencyInformation, Critical: false},
		},
	}
}
