package diagfmt

import (
	"encoding/json"
	"io"
	"sort"
	"strings"

	"github.com/google/uuid"

	"klibexport/internal/diag"
)

const (
	sarifVersion = "2.1.0"
	sarifSchema  = "https://json.schemastore.org/sarif-2.1.0.json"
)

// runNamespace scopes run GUIDs; it never changes between releases.
var runNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/klibexport/sarif-run"))

type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool              sarifTool         `json:"tool"`
	AutomationDetails sarifAutomation   `json:"automationDetails"`
	Invocations       []sarifInvocation `json:"invocations,omitempty"`
	Results           []sarifResult     `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version,omitempty"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	ShortDescription sarifMessage `json:"shortDescription"`
}

type sarifAutomation struct {
	GUID string `json:"guid"`
}

type sarifInvocation struct {
	Arguments           []string `json:"arguments,omitempty"`
	ExecutionSuccessful bool     `json:"executionSuccessful"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	RuleIndex int             `json:"ruleIndex"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifLocation struct {
	LogicalLocations []sarifLogicalLocation `json:"logicalLocations"`
}

type sarifLogicalLocation struct {
	FullyQualifiedName string `json:"fullyQualifiedName"`
	Kind               string `json:"kind,omitempty"`
}

// RunGUID derives the SARIF run identifier from the run inputs.
func RunGUID(inputs []string) uuid.UUID {
	sorted := append([]string(nil), inputs...)
	sort.Strings(sorted)
	return uuid.NewSHA1(runNamespace, []byte(strings.Join(sorted, "\n")))
}

func sarifLevel(sev diag.Severity) string {
	switch sev {
	case diag.SevError:
		return "error"
	case diag.SevWarning:
		return "warning"
	default:
		return "note"
	}
}

// Sarif форматирует диагностики в SARIF формат (v2.1.0)
func Sarif(w io.Writer, bag *diag.Bag, meta SarifRunMeta) error {
	items := bag.Items()

	ruleIndex := make(map[diag.Code]int)
	var codes []diag.Code
	for _, d := range items {
		if _, ok := ruleIndex[d.Code]; !ok {
			ruleIndex[d.Code] = 0
			codes = append(codes, d.Code)
		}
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	rules := make([]sarifRule, len(codes))
	for i, c := range codes {
		ruleIndex[c] = i
		rules[i] = sarifRule{ID: c.ID(), Name: c.Title(), ShortDescription: sarifMessage{Text: c.Title()}}
	}

	results := make([]sarifResult, 0, len(items))
	for _, d := range items {
		res := sarifResult{
			RuleID:    d.Code.ID(),
			RuleIndex: ruleIndex[d.Code],
			Level:     sarifLevel(d.Severity),
			Message:   sarifMessage{Text: d.Message},
		}
		if !d.Subject.IsZero() {
			res.Locations = []sarifLocation{{LogicalLocations: []sarifLogicalLocation{{
				FullyQualifiedName: d.Subject.String(),
				Kind:               logicalKind(d.Subject.Kind),
			}}}}
		}
		results = append(results, res)
	}

	name := meta.ToolName
	if name == "" {
		name = "klibexport"
	}
	run := sarifRun{
		Tool:              sarifTool{Driver: sarifDriver{Name: name, Version: meta.ToolVersion, Rules: rules}},
		AutomationDetails: sarifAutomation{GUID: RunGUID(meta.Inputs).String()},
		Results:           results,
	}
	if meta.InvocationArgs != nil {
		run.Invocations = []sarifInvocation{{Arguments: meta.InvocationArgs, ExecutionSuccessful: !bag.HasErrors()}}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(sarifLog{Schema: sarifSchema, Version: sarifVersion, Runs: []sarifRun{run}})
}

// logicalKind maps declaration kinds to SARIF logical location kinds.
func logicalKind(kind string) string {
	switch kind {
	case "":
		return "module"
	case "class", "enum", "typealias":
		return "type"
	case "function":
		return "function"
	case "property":
		return "member"
	default:
		return kind
	}
}
