package report

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"runtime"

	"unref/internal/deadcode"
)

// SARIFReport is a SARIF 2.1.0 log,
// https://docs.oasis-open.org/sarif/sarif/v2.1.0/sarif-v2.1.0.html.
type SARIFReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []SARIFRun `json:"runs"`
}

// SARIFRun represents a single analysis run.
type SARIFRun struct {
	Tool              SARIFTool                  `json:"tool"`
	AutomationDetails *SARIFRunAutomationDetails `json:"automationDetails,omitempty"`
	Results           []SARIFResult              `json:"results"`
	Invocations       []SARIFInvocation          `json:"invocations,omitempty"`
}

// SARIFRunAutomationDetails names the codebase a run covers.
type SARIFRunAutomationDetails struct {
	ID string `json:"id"`
}

type SARIFTool struct {
	Driver SARIFDriver `json:"driver"`
}

type SARIFDriver struct {
	Name            string      `json:"name"`
	Version         string      `json:"version,omitempty"`
	InformationURI  string      `json:"informationUri,omitempty"`
	Rules           []SARIFRule `json:"rules,omitempty"`
	SemanticVersion string      `json:"semanticVersion,omitempty"`
}

type SARIFRule struct {
	ID                   string                  `json:"id"`
	Name                 string                  `json:"name,omitempty"`
	ShortDescription     *SARIFMessage           `json:"shortDescription,omitempty"`
	FullDescription      *SARIFMessage           `json:"fullDescription,omitempty"`
	DefaultConfiguration *SARIFRuleConfiguration `json:"defaultConfiguration,omitempty"`
	Properties           map[string]any          `json:"properties,omitempty"`
}

type SARIFRuleConfiguration struct {
	Level string `json:"level,omitempty"`
}

type SARIFResult struct {
	RuleID              string            `json:"ruleId"`
	RuleIndex           int               `json:"ruleIndex"`
	Level               string            `json:"level,omitempty"`
	Message             SARIFMessage      `json:"message"`
	Locations           []SARIFLocation   `json:"locations,omitempty"`
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`
}

type SARIFMessage struct {
	Text string `json:"text,omitempty"`
}

type SARIFLocation struct {
	PhysicalLocation *SARIFPhysicalLocation `json:"physicalLocation,omitempty"`
}

type SARIFPhysicalLocation struct {
	ArtifactLocation *SARIFArtifactLocation `json:"artifactLocation,omitempty"`
	Region           *SARIFRegion           `json:"region,omitempty"`
}

type SARIFArtifactLocation struct {
	URI       string `json:"uri,omitempty"`
	URIBaseID string `json:"uriBaseId,omitempty"`
}

type SARIFRegion struct {
	StartLine   int `json:"startLine,omitempty"`
	StartColumn int `json:"startColumn,omitempty"`
}

type SARIFInvocation struct {
	ExecutionSuccessful        bool                `json:"executionSuccessful"`
	Machine                    string              `json:"machine,omitempty"`
	ToolExecutionNotifications []SARIFNotification `json:"toolExecutionNotifications,omitempty"`
}

// SARIFNotification carries a diagnostic of the run.
type SARIFNotification struct {
	Level      string          `json:"level"`
	Message    SARIFMessage    `json:"message"`
	Descriptor *SARIFReference `json:"descriptor,omitempty"`
	Locations  []SARIFLocation `json:"locations,omitempty"`
}

type SARIFReference struct {
	ID string `json:"id"`
}

const (
	sarifSchema  = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"
	sarifVersion = "2.1.0"
	ruleIDPrefix = "unref/unreferenced-"
)

// BuildSARIF converts a document to SARIF, one run per codebase.
func BuildSARIF(doc *Document, version string) *SARIFReport {
	report := &SARIFReport{
		Schema:  sarifSchema,
		Version: sarifVersion,
		Runs:    make([]SARIFRun, 0, len(doc.Codebases)),
	}

	notifications := make(map[string][]SARIFNotification)
	for _, d := range doc.Diagnostics {
		notifications[d.Codebase] = append(notifications[d.Codebase], diagnosticNotification(d))
	}

	for _, cb := range doc.Codebases {
		rules, ruleIndex := buildRules(cb)

		results := make([]SARIFResult, 0)
		for _, g := range cb.Files {
			for _, f := range g.Findings {
				ruleID := ruleIDPrefix + string(f.Kind)
				results = append(results, SARIFResult{
					RuleID:    ruleID,
					RuleIndex: ruleIndex[ruleID],
					Level:     "warning",
					Message: SARIFMessage{
						Text: fmt.Sprintf("%s %s is never referenced", f.Kind, f.Name),
					},
					Locations: []SARIFLocation{findingLocation(g.Path, f.Position)},
					PartialFingerprints: map[string]string{
						"unref/v1": fingerprint(g.Path, f.Kind, f.Name),
					},
				})
			}
		}

		report.Runs = append(report.Runs, SARIFRun{
			Tool: SARIFTool{
				Driver: SARIFDriver{
					Name:            "unref",
					Version:         version,
					SemanticVersion: version,
					Rules:           rules,
				},
			},
			AutomationDetails: &SARIFRunAutomationDetails{ID: "unref/" + cb.Name + "/"},
			Results:           results,
			Invocations: []SARIFInvocation{
				{
					ExecutionSuccessful:        true,
					Machine:                    runtime.GOOS + "/" + runtime.GOARCH,
					ToolExecutionNotifications: notifications[cb.Name],
				},
			},
		})
	}

	// Load failures belong to no codebase; they get a run of their own.
	if orphans := notifications[""]; len(orphans) > 0 {
		report.Runs = append(report.Runs, SARIFRun{
			Tool:    SARIFTool{Driver: SARIFDriver{Name: "unref", Version: version, SemanticVersion: version}},
			Results: []SARIFResult{},
			Invocations: []SARIFInvocation{
				{
					ExecutionSuccessful:        false,
					Machine:                    runtime.GOOS + "/" + runtime.GOARCH,
					ToolExecutionNotifications: orphans,
				},
			},
		})
	}

	return report
}

func renderSARIF(w io.Writer, doc *Document, version string) error {
	data, err := json.MarshalIndent(BuildSARIF(doc, version), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal SARIF: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// buildRules returns one rule per kind present in cb, in kind display order.
func buildRules(cb Codebase) ([]SARIFRule, map[string]int) {
	present := make(map[deadcode.Kind]bool)
	for _, g := range cb.Files {
		for _, f := range g.Findings {
			present[f.Kind] = true
		}
	}

	var rules []SARIFRule
	index := make(map[string]int)
	for _, k := range deadcode.AllKinds {
		if !present[k] {
			continue
		}
		id := ruleIDPrefix + string(k)
		index[id] = len(rules)
		rules = append(rules, SARIFRule{
			ID:   id,
			Name: "Unreferenced" + titleKind(k),
			ShortDescription: &SARIFMessage{
				Text: fmt.Sprintf("Unreferenced %s", k),
			},
			FullDescription: &SARIFMessage{
				Text: fmt.Sprintf("No reference to this %s was found anywhere in the codebase.", k),
			},
			DefaultConfiguration: &SARIFRuleConfiguration{Level: "warning"},
			Properties: map[string]any{
				"tags": []string{"maintainability", "unused-code"},
			},
		})
	}
	return rules, index
}

func diagnosticNotification(d Diagnostic) SARIFNotification {
	n := SARIFNotification{
		Level:      severityToSARIFLevel(d.Severity),
		Message:    SARIFMessage{Text: d.Message},
		Descriptor: &SARIFReference{ID: string(d.Code)},
	}
	if d.Path != "" {
		pos := deadcode.Position{}
		if d.Position != nil {
			pos = *d.Position
		}
		n.Locations = []SARIFLocation{findingLocation(d.Path, pos)}
	}
	return n
}

func findingLocation(path string, pos deadcode.Position) SARIFLocation {
	loc := SARIFLocation{
		PhysicalLocation: &SARIFPhysicalLocation{
			ArtifactLocation: &SARIFArtifactLocation{
				URI:       path,
				URIBaseID: "%SRCROOT%",
			},
		},
	}
	if pos.Line > 0 {
		loc.PhysicalLocation.Region = &SARIFRegion{
			StartLine:   pos.Line,
			StartColumn: pos.Column,
		}
	}
	return loc
}

// severityToSARIFLevel converts a diagnostic severity to a SARIF level.
func severityToSARIFLevel(s deadcode.Severity) string {
	switch s {
	case deadcode.SeverityError:
		return "error"
	default:
		return "warning"
	}
}

// fingerprint hashes a finding's identity without its position.
func fingerprint(path string, kind deadcode.Kind, name string) string {
	hash := sha256.Sum256([]byte(path + "\x00" + string(kind) + "\x00" + name))
	return hex.EncodeToString(hash[:])[:16]
}

func titleKind(k deadcode.Kind) string {
	s := string(k)
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
