// Package pipeline executes the fixed sequence of LLM-backed stages that
// turns a support request into a synthesized answer. Stages run in a fixed
// order with per-stage run conditions over the classification record; each
// stage reads earlier outputs through explicit input references.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alexvand/supportcrew/pkg/models"
)

const (
	fetchDirectivePrefix = "FETCH:"
	maxToolRounds        = 3
	maxFetchPerRound     = 5
)

// Fetcher is the fetch-and-summarize tool available to designated stages.
type Fetcher interface {
	FetchSummary(ctx context.Context, url string) (string, error)
}

// Engine runs the stage table against one request at a time. It is stateless
// between runs: every Run builds a fresh context.
type Engine struct {
	provider models.Provider
	fetcher  Fetcher
	defs     *crewDefs
	stages   []Stage
}

// New builds an Engine from the embedded crew definitions and the fixed
// stage table, validating that the table is a well-formed linear DAG.
func New(provider models.Provider, fetcher Fetcher) (*Engine, error) {
	defs, err := loadCrewDefs()
	if err != nil {
		return nil, err
	}

	stages := stageTable()
	seen := make(map[string]bool, len(stages))
	classifySeen := false
	for _, st := range stages {
		if _, ok := defs.Tasks[st.Name]; !ok {
			return nil, fmt.Errorf("stage %s: no task definition", st.Name)
		}
		for _, ref := range st.InputRefs {
			if !seen[ref] {
				return nil, fmt.Errorf("stage %s: input ref %q does not precede it", st.Name, ref)
			}
		}
		if st.Condition != nil && !classifySeen {
			return nil, fmt.Errorf("stage %s: conditioned before %s runs", st.Name, StageClassify)
		}
		seen[st.Name] = true
		if st.Name == StageClassify {
			classifySeen = true
		}
	}

	return &Engine{
		provider: provider,
		fetcher:  fetcher,
		defs:     defs,
		stages:   stages,
	}, nil
}

// Run executes all stages in order and returns the final stage's output.
// Any stage error halts the run; there is no partial-result salvage.
func (e *Engine) Run(ctx context.Context, inputs models.JobInputs) (string, error) {
	outputs := make(map[string]string, len(e.stages))
	var cls Classification
	var final string

	for _, st := range e.stages {
		if st.Condition != nil && !st.Condition(cls) {
			slog.Info("stage skipped", "stage", st.Name)
			continue
		}

		out, err := e.runStage(ctx, st, inputs, outputs)
		if err != nil {
			return "", fmt.Errorf("stage %s: %w", st.Name, err)
		}

		switch st.Name {
		case StageClassify:
			cls, err = decodeClassification(out)
			if err != nil {
				return "", fmt.Errorf("stage %s: %w", st.Name, err)
			}
			slog.Info("request classified",
				"business", cls.Business, "technical", cls.Technical, "user", cls.User)
		case StageLinks, StageDocsLinks, StageFurtherReading:
			sel, err := decodeLinkSelection(out)
			if err != nil {
				return "", fmt.Errorf("stage %s: %w", st.Name, err)
			}
			normalized, err := json.Marshal(sel)
			if err != nil {
				return "", fmt.Errorf("stage %s: %w", st.Name, err)
			}
			out = string(normalized)
		}

		outputs[st.Name] = out
		final = out
		slog.Info("stage completed", "stage", st.Name, "output_len", len(out))
	}

	return final, nil
}

func (e *Engine) runStage(ctx context.Context, st Stage, inputs models.JobInputs, outputs map[string]string) (string, error) {
	task := e.defs.Tasks[st.Name]
	agent := e.defs.Agents[task.Agent]

	system := fmt.Sprintf("You are %s.\nGoal: %s\n%s", agent.Role, agent.Goal, agent.Backstory)

	var b strings.Builder
	b.WriteString(renderTemplate(task.Description, inputs))
	if task.ExpectedOutput != "" {
		b.WriteString("\n\nExpected output: " + task.ExpectedOutput)
	}

	for _, ref := range st.InputRefs {
		// Skipped stages leave no entry and contribute nothing.
		if out, ok := outputs[ref]; ok {
			fmt.Fprintf(&b, "\n\nOutput of the %s step:\n%s", ref, out)
		}
	}

	if st.Schema != nil {
		b.WriteString("\n\nRespond with a single JSON object matching this schema, and nothing else:\n")
		b.WriteString(mustJSON(st.Schema))
		out, err := e.provider.Complete(ctx, models.CompletionRequest{
			System:   system,
			User:     b.String(),
			JSONMode: true,
		})
		if err != nil {
			return "", err
		}
		if err := validateJSONAgainstSchema(st.Schema, []byte(stripFences(out))); err != nil {
			return "", err
		}
		return stripFences(out), nil
	}

	if st.UseFetch {
		return e.invokeWithTools(ctx, st.Name, system, b.String())
	}

	return e.provider.Complete(ctx, models.CompletionRequest{System: system, User: b.String()})
}

const toolInstructions = `You may request the content of a URL before answering: reply with one or more lines of the form "FETCH: <url>" and nothing else. Summaries of the fetched pages will be supplied back to you. When you have everything you need, reply with your final answer instead.`

// invokeWithTools runs a bounded invoke/fetch loop. The model requests pages
// via FETCH directives; each round's summaries are appended to the prompt
// before re-invoking. After the round limit, the last answer stands.
func (e *Engine) invokeWithTools(ctx context.Context, stage, system, user string) (string, error) {
	prompt := user + "\n\n" + toolInstructions

	out, err := e.provider.Complete(ctx, models.CompletionRequest{System: system, User: prompt})
	if err != nil {
		return "", err
	}

	for round := 0; round < maxToolRounds; round++ {
		urls := parseFetchDirectives(out)
		if len(urls) == 0 {
			return out, nil
		}
		if len(urls) > maxFetchPerRound {
			urls = urls[:maxFetchPerRound]
		}

		var results strings.Builder
		for _, u := range urls {
			slog.Info("stage fetching url", "stage", stage, "url", u)
			summary, err := e.fetcher.FetchSummary(ctx, u)
			if err != nil {
				// A dead link must not fail the stage; report it to the model.
				summary = fmt.Sprintf("error fetching %s: %v", u, err)
			}
			fmt.Fprintf(&results, "%s:\n%s\n\n", u, summary)
		}

		prompt += "\n\nFetched page summaries:\n" + results.String() +
			"Use these results to produce your final answer. Request more pages only if something essential is still missing."

		out, err = e.provider.Complete(ctx, models.CompletionRequest{System: system, User: prompt})
		if err != nil {
			return "", err
		}
	}

	return stripDirectives(out), nil
}

// renderTemplate substitutes the task placeholders with the run inputs. Link
// catalogs render as JSON so the model sees url/description pairs verbatim.
func renderTemplate(desc string, inputs models.JobInputs) string {
	r := strings.NewReplacer(
		"{support_request}", inputs.SupportRequest,
		"{links_data}", linksJSON(inputs.Links),
		"{docs_links_data}", linksJSON(inputs.DocsLinks),
	)
	return r.Replace(desc)
}

func linksJSON(links []models.Link) string {
	b, err := json.Marshal(links)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func parseFetchDirectives(out string) []string {
	var urls []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, fetchDirectivePrefix) {
			continue
		}
		u := strings.TrimSpace(strings.TrimPrefix(line, fetchDirectivePrefix))
		if u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// stripDirectives drops any leftover FETCH lines once the tool budget is
// spent, keeping whatever answer text surrounds them.
func stripDirectives(out string) string {
	lines := strings.Split(out, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), fetchDirectivePrefix) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
