package pipeline

// Stage names, in execution order.
const (
	StageStructure        = "structure"
	StageClassify         = "classify"
	StageLinks            = "links"
	StageDocsLinks        = "docs_links"
	StageUserSupport      = "user_support"
	StageBusinessSupport  = "business_support"
	StageTechnicalSupport = "technical_support"
	StageSummary          = "summary"
	StageFurtherReading   = "further_reading"
	StageFinal            = "final"
)

// Condition gates a stage on the classification record. A nil Condition
// means the stage always runs.
type Condition func(Classification) bool

func isBusiness(c Classification) bool  { return c.Business }
func isUser(c Classification) bool      { return c.User }
func isTechnical(c Classification) bool { return c.Technical }

// Stage is one node of the pipeline: a capability invocation plus a read set
// of prior outputs and a run condition. InputRefs may only name stages
// earlier in the fixed order; the table is validated at engine construction.
type Stage struct {
	Name      string
	InputRefs []string
	Condition Condition
	// Schema, when set, constrains the stage to JSON output validated
	// against it.
	Schema map[string]any
	// UseFetch lets the stage request pages through the fetch tool.
	UseFetch bool
}

// stageTable returns the fixed execution order. Concrete stage behavior is
// data here; the engine interprets it uniformly.
func stageTable() []Stage {
	return []Stage{
		{Name: StageStructure},
		{
			Name:      StageClassify,
			InputRefs: []string{StageStructure},
			Schema:    classificationSchema(),
		},
		{
			Name:      StageLinks,
			InputRefs: []string{StageClassify},
			Schema:    linkSelectionSchema(),
		},
		{
			Name:      StageDocsLinks,
			InputRefs: []string{StageClassify},
			Schema:    linkSelectionSchema(),
		},
		{
			Name:      StageUserSupport,
			InputRefs: []string{StageClassify, StageLinks, StageDocsLinks},
			Condition: isUser,
			UseFetch:  true,
		},
		{
			Name:      StageBusinessSupport,
			InputRefs: []string{StageClassify, StageLinks, StageDocsLinks},
			Condition: isBusiness,
			UseFetch:  true,
		},
		{
			Name:      StageTechnicalSupport,
			InputRefs: []string{StageClassify, StageLinks, StageDocsLinks},
			Condition: isTechnical,
			UseFetch:  true,
		},
		{
			Name: StageSummary,
			InputRefs: []string{
				StageClassify, StageBusinessSupport, StageUserSupport, StageTechnicalSupport,
			},
		},
		{
			Name:      StageFurtherReading,
			InputRefs: []string{StageSummary},
			Schema:    linkSelectionSchema(),
		},
		{
			Name:      StageFinal,
			InputRefs: []string{StageSummary, StageFurtherReading},
			UseFetch:  true,
		},
	}
}
