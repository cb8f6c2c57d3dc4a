package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexvand/supportcrew/internal/agent/mock"
	"github.com/alexvand/supportcrew/internal/pipeline"
	"github.com/alexvand/supportcrew/pkg/models"
)

// fakeFetcher records requested URLs and returns canned summaries.
type fakeFetcher struct {
	urls []string
	err  error
}

func (f *fakeFetcher) FetchSummary(_ context.Context, url string) (string, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return "", f.err
	}
	return "summary of " + url, nil
}

func sampleInputs() models.JobInputs {
	return models.JobInputs{
		SupportRequest: "How much does it cost to do an Airdrop?",
		Links: []models.Link{
			{URL: "https://example.com/pricing", Description: "Pricing overview."},
		},
		DocsLinks: []models.Link{
			{URL: "https://docs.example.com/airdrops", Description: "Airdrop guide."},
		},
	}
}

// script drives a mock provider by matching unique fragments of each stage's
// task description. Overrides take precedence over the defaults.
type script struct {
	classification string
	linkSelection  string
	overrides      map[string]func(req models.CompletionRequest) (string, error)
	prompts        map[string][]string
}

func newScript(classification string) *script {
	return &script{
		classification: classification,
		linkSelection:  `{"business": ["https://example.com/pricing"], "user": [], "technical": []}`,
		overrides:      make(map[string]func(models.CompletionRequest) (string, error)),
		prompts:        make(map[string][]string),
	}
}

// stageFragments maps stage names to a fragment unique to that stage's prompt.
var stageFragments = map[string]string{
	pipeline.StageStructure:        "Convert the user's support request",
	pipeline.StageClassify:         "categorize it into business",
	pipeline.StageFurtherReading:   "continue the research",
	pipeline.StageLinks:            "select the top 10",
	pipeline.StageUserSupport:      "user-focused information",
	pipeline.StageBusinessSupport:  "business-related information",
	pipeline.StageTechnicalSupport: "technical details, such as API functionality",
	pipeline.StageSummary:          "Compile all previous responses",
	pipeline.StageFinal:            "Check the summary",
}

func (s *script) stageFor(req models.CompletionRequest) string {
	// further_reading before links: both say "select"-style things; docs_links
	// shares the links fragment and is told apart by its catalog content.
	for _, name := range []string{
		pipeline.StageStructure, pipeline.StageClassify, pipeline.StageFurtherReading,
		pipeline.StageUserSupport, pipeline.StageBusinessSupport, pipeline.StageTechnicalSupport,
		pipeline.StageSummary, pipeline.StageFinal,
	} {
		if strings.Contains(req.User, stageFragments[name]) {
			return name
		}
	}
	if strings.Contains(req.User, stageFragments[pipeline.StageLinks]) {
		if strings.Contains(req.User, "docs.example.com") {
			return pipeline.StageDocsLinks
		}
		return pipeline.StageLinks
	}
	return ""
}

func (s *script) provider() *mock.MockProvider {
	return &mock.MockProvider{
		Name_: "mock",
		CompleteFunc: func(_ context.Context, req models.CompletionRequest) (string, error) {
			stage := s.stageFor(req)
			s.prompts[stage] = append(s.prompts[stage], req.User)
			if fn, ok := s.overrides[stage]; ok {
				return fn(req)
			}
			switch stage {
			case pipeline.StageClassify:
				return s.classification, nil
			case pipeline.StageLinks, pipeline.StageDocsLinks, pipeline.StageFurtherReading:
				return s.linkSelection, nil
			case pipeline.StageSummary:
				return "summary text", nil
			case pipeline.StageFinal:
				return "final answer text", nil
			case "":
				return "", fmt.Errorf("unmatched prompt: %s", req.User)
			default:
				return stage + " output", nil
			}
		},
	}
}

func newEngine(t *testing.T, s *script, f pipeline.Fetcher) *pipeline.Engine {
	t.Helper()
	eng, err := pipeline.New(s.provider(), f)
	require.NoError(t, err)
	return eng
}

func TestRun_AllCategories(t *testing.T) {
	s := newScript(`{"business": true, "technical": true, "user": true, "content": "airdrop cost"}`)
	eng := newEngine(t, s, &fakeFetcher{})

	out, err := eng.Run(context.Background(), sampleInputs())
	require.NoError(t, err)
	assert.Equal(t, "final answer text", out)

	for _, stage := range []string{
		pipeline.StageUserSupport, pipeline.StageBusinessSupport, pipeline.StageTechnicalSupport,
	} {
		assert.NotEmpty(t, s.prompts[stage], "stage %s should have run", stage)
	}
}

func TestRun_NoCategoriesSkipsDomainStages(t *testing.T) {
	s := newScript(`{"business": false, "technical": false, "user": false, "content": "airdrop cost"}`)
	eng := newEngine(t, s, &fakeFetcher{})

	out, err := eng.Run(context.Background(), sampleInputs())
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	for _, stage := range []string{
		pipeline.StageUserSupport, pipeline.StageBusinessSupport, pipeline.StageTechnicalSupport,
	} {
		assert.Empty(t, s.prompts[stage], "stage %s should have been skipped", stage)
	}

	// Summary still runs and must not reference the skipped stages' outputs.
	require.NotEmpty(t, s.prompts[pipeline.StageSummary])
	summaryPrompt := s.prompts[pipeline.StageSummary][0]
	assert.NotContains(t, summaryPrompt, "Output of the business_support step")
	assert.NotContains(t, summaryPrompt, "Output of the technical_support step")
	assert.Contains(t, summaryPrompt, "Output of the classify step")
}

func TestRun_ClassificationUnparseable(t *testing.T) {
	s := newScript(`the request is definitely technical`)
	eng := newEngine(t, s, &fakeFetcher{})

	_, err := eng.Run(context.Background(), sampleInputs())
	require.Error(t, err)
	assert.Contains(t, err.Error(), pipeline.StageClassify)
}

func TestRun_ClassificationMissingField(t *testing.T) {
	s := newScript(`{"business": true, "technical": false, "user": false}`)
	eng := newEngine(t, s, &fakeFetcher{})

	_, err := eng.Run(context.Background(), sampleInputs())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema")
}

func TestRun_LinkSelectionTruncatedToTen(t *testing.T) {
	var urls []string
	for i := 0; i < 15; i++ {
		urls = append(urls, fmt.Sprintf(`"https://example.com/l%d"`, i))
	}
	s := newScript(`{"business": false, "technical": false, "user": true, "content": "x"}`)
	s.linkSelection = fmt.Sprintf(`{"business": [%s], "user": [], "technical": []}`, strings.Join(urls, ","))

	eng := newEngine(t, s, &fakeFetcher{})
	_, err := eng.Run(context.Background(), sampleInputs())
	require.NoError(t, err)

	// The user_support stage reads the links output; it must see the capped list.
	require.NotEmpty(t, s.prompts[pipeline.StageUserSupport])
	prompt := s.prompts[pipeline.StageUserSupport][0]
	assert.Contains(t, prompt, "https://example.com/l9")
	assert.NotContains(t, prompt, "https://example.com/l10")
}

func TestRun_CapabilityFailurePropagates(t *testing.T) {
	s := newScript(`{"business": false, "technical": true, "user": false, "content": "x"}`)
	s.overrides[pipeline.StageTechnicalSupport] = func(models.CompletionRequest) (string, error) {
		return "", errors.New("capability exploded")
	}
	eng := newEngine(t, s, &fakeFetcher{})

	_, err := eng.Run(context.Background(), sampleInputs())
	require.Error(t, err)
	assert.Contains(t, err.Error(), pipeline.StageTechnicalSupport)
	assert.Contains(t, err.Error(), "capability exploded")
}

func TestRun_FailingStageSkippedWhenFlagFalse(t *testing.T) {
	s := newScript(`{"business": false, "technical": false, "user": false, "content": "x"}`)
	s.overrides[pipeline.StageTechnicalSupport] = func(models.CompletionRequest) (string, error) {
		return "", errors.New("capability exploded")
	}
	eng := newEngine(t, s, &fakeFetcher{})

	out, err := eng.Run(context.Background(), sampleInputs())
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestRun_ToolLoopFetches(t *testing.T) {
	s := newScript(`{"business": false, "technical": false, "user": true, "content": "x"}`)
	calls := 0
	s.overrides[pipeline.StageUserSupport] = func(models.CompletionRequest) (string, error) {
		calls++
		if calls == 1 {
			return "FETCH: https://example.com/pricing", nil
		}
		return "user support answer with pricing", nil
	}
	fetcher := &fakeFetcher{}
	eng := newEngine(t, s, fetcher)

	_, err := eng.Run(context.Background(), sampleInputs())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/pricing"}, fetcher.urls)
	assert.Equal(t, 2, calls)

	// The second invocation must carry the fetched summary.
	prompts := s.prompts[pipeline.StageUserSupport]
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[1], "summary of https://example.com/pricing")
}

func TestRun_ToolLoopBounded(t *testing.T) {
	s := newScript(`{"business": false, "technical": false, "user": true, "content": "x"}`)
	s.overrides[pipeline.StageUserSupport] = func(models.CompletionRequest) (string, error) {
		// Never stops asking for pages.
		return "FETCH: https://example.com/pricing\nstill need more", nil
	}
	fetcher := &fakeFetcher{}
	eng := newEngine(t, s, fetcher)

	out, err := eng.Run(context.Background(), sampleInputs())
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Len(t, fetcher.urls, 3, "one fetch per round, bounded rounds")
	// Leftover directives are stripped from the stage output.
	require.NotEmpty(t, s.prompts[pipeline.StageSummary])
	assert.NotContains(t, s.prompts[pipeline.StageSummary][0], "FETCH:")
}

func TestRun_FetchErrorNotFatal(t *testing.T) {
	s := newScript(`{"business": false, "technical": false, "user": true, "content": "x"}`)
	calls := 0
	s.overrides[pipeline.StageUserSupport] = func(models.CompletionRequest) (string, error) {
		calls++
		if calls == 1 {
			return "FETCH: https://example.com/broken", nil
		}
		return "answered without the page", nil
	}
	eng := newEngine(t, s, &fakeFetcher{err: errors.New("connection refused")})

	out, err := eng.Run(context.Background(), sampleInputs())
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestRun_Stateless(t *testing.T) {
	s := newScript(`{"business": true, "technical": false, "user": false, "content": "x"}`)
	eng := newEngine(t, s, &fakeFetcher{})

	first, err := eng.Run(context.Background(), sampleInputs())
	require.NoError(t, err)
	second, err := eng.Run(context.Background(), sampleInputs())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNew_ValidTable(t *testing.T) {
	_, err := pipeline.New(mock.NewProvider(), &fakeFetcher{})
	require.NoError(t, err)
}
