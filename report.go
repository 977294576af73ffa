package main

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/ajranjith/vndk-depcheck/internal/depcheck"
	"github.com/ajranjith/vndk-depcheck/internal/support"
)

const ruleReadError = "vndk-dep/read-error"

func ruleID(scope depcheck.Scope) string {
	return "vndk-dep/" + string(scope)
}

// ---------------------------------------------------------------------------
// SARIF output
// ---------------------------------------------------------------------------

type sarifDocument struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}
type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}
type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}
type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules,omitempty"`
}
type sarifRule struct {
	ID               string       `json:"id"`
	ShortDescription sarifMessage `json:"shortDescription"`
}
type sarifResult struct {
	RuleID  string          `json:"ruleId"`
	Level   string          `json:"level"`
	Message sarifMessage    `json:"message"`
	Locs    []sarifLocation `json:"locations,omitempty"`
}
type sarifMessage struct {
	Text string `json:"text"`
}
type sarifLocation struct {
	PhysicalLocation sarifPhysical `json:"physicalLocation"`
}
type sarifPhysical struct {
	ArtifactLocation sarifArtifact `json:"artifactLocation"`
}
type sarifArtifact struct {
	URI string `json:"uri"`
}

var sarifRules = []sarifRule{
	{ID: ruleID(depcheck.ScopeVendor), ShortDescription: sarifMessage{Text: "Vendor object depends on a library outside LL-NDK, VNDK, VNDK-SP and the vendor partitions"}},
	{ID: ruleID(depcheck.ScopeVndkSpExt), ShortDescription: sarifMessage{Text: "VNDK-SP extension depends on a library outside LL-NDK, VNDK-SP and the vendor partitions"}},
	{ID: ruleID(depcheck.ScopeSPHAL), ShortDescription: sarifMessage{Text: "Same-process HAL depends on a library outside LL-NDK, VNDK-SP and the SP-HAL closure"}},
	{ID: ruleReadError, ShortDescription: sarifMessage{Text: "ELF file could not be read"}},
}

func violationResult(v depcheck.Violation, level string) sarifResult {
	return sarifResult{
		RuleID: ruleID(v.Scope),
		Level:  level,
		Message: sarifMessage{Text: fmt.Sprintf("%d-bit %s depends on disallowed libraries: %s",
			v.Bitness, v.TargetPath, strings.Join(v.Disallowed, ", "))},
		Locs: []sarifLocation{location(v.TargetPath)},
	}
}

func location(targetPath string) sarifLocation {
	return sarifLocation{PhysicalLocation: sarifPhysical{
		ArtifactLocation: sarifArtifact{URI: strings.TrimPrefix(targetPath, "/")},
	}}
}

func buildSARIF(rep *checkReport) sarifDocument {
	results := []sarifResult{}
	for _, e := range rep.ReadErrors {
		results = append(results, sarifResult{
			RuleID:  ruleReadError,
			Level:   "error",
			Message: sarifMessage{Text: e.Message},
			Locs:    []sarifLocation{location(e.TargetPath)},
		})
	}
	for _, v := range rep.Violations {
		results = append(results, violationResult(v, "error"))
	}
	// Waived violations stay visible but do not fail the gate.
	for _, v := range rep.Waived {
		results = append(results, violationResult(v, "warning"))
	}

	return sarifDocument{
		Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json",
		Version: "2.1.0",
		Runs: []sarifRun{{
			Tool:    sarifTool{Driver: sarifDriver{Name: "vndkdep", Version: Version, Rules: sarifRules}},
			Results: results,
		}},
	}
}

func writeSARIF(path string, rep *checkReport) error {
	data, err := json.MarshalIndent(buildSARIF(rep), "", "  ")
	if err != nil {
		return err
	}
	return support.WriteFileAtomic(path, data)
}

// ---------------------------------------------------------------------------
// JUnit XML output
// ---------------------------------------------------------------------------

type junitTestsuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Testsuites []junitTestsuite `xml:"testsuite"`
}
type junitTestsuite struct {
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Skipped  int             `xml:"skipped,attr"`
	Time     string          `xml:"time,attr"`
	Cases    []junitTestcase `xml:"testcase"`
}
type junitTestcase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	Skipped   *junitSkipped `xml:"skipped,omitempty"`
}
type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}
type junitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// buildJUnit emits one suite per word size. Each suite has a case per
// checked namespace; waived violations are reported as skipped cases.
func buildJUnit(rep *checkReport) junitTestsuites {
	var doc junitTestsuites

	readSuite := junitTestsuite{Name: "vndk-dependency.read", Time: "0"}
	readCase := junitTestcase{Name: "read-elf-files", Classname: "vndkdep.read", Time: "0"}
	if len(rep.ReadErrors) > 0 {
		lines := make([]string, 0, len(rep.ReadErrors))
		for _, e := range rep.ReadErrors {
			lines = append(lines, e.TargetPath+": "+e.Message)
		}
		readCase.Failure = &junitFailure{
			Message: fmt.Sprintf("%d read errors", len(rep.ReadErrors)),
			Type:    "READ",
			Body:    strings.Join(lines, "\n"),
		}
		readSuite.Failures++
	}
	readSuite.Cases = append(readSuite.Cases, readCase)
	readSuite.Tests = len(readSuite.Cases)
	doc.Testsuites = append(doc.Testsuites, readSuite)

	for _, p := range rep.Passes {
		suite := junitTestsuite{Name: fmt.Sprintf("vndk-dependency.%dbit", p.Bitness), Time: "0"}
		for _, scope := range []depcheck.Scope{depcheck.ScopeVendor, depcheck.ScopeVndkSpExt, depcheck.ScopeSPHAL} {
			tc := junitTestcase{Name: string(scope), Classname: "vndkdep." + suite.Name, Time: "0"}
			failing := byScope(p.Violations(), scope)
			waived := byScope(p.Waived(), scope)
			switch {
			case len(failing) > 0:
				tc.Failure = &junitFailure{
					Message: fmt.Sprintf("%d disallowed dependencies", len(failing)),
					Type:    strings.ToUpper(string(scope)),
					Body:    joinViolations(failing),
				}
				suite.Failures++
			case len(waived) > 0:
				tc.Skipped = &junitSkipped{Message: fmt.Sprintf("%d errors ignored: VNDK run-time enforcement is off", len(waived))}
				suite.Skipped++
			}
			suite.Cases = append(suite.Cases, tc)
		}
		suite.Tests = len(suite.Cases)
		doc.Testsuites = append(doc.Testsuites, suite)
	}
	return doc
}

func byScope(vs []depcheck.Violation, scope depcheck.Scope) []depcheck.Violation {
	var out []depcheck.Violation
	for _, v := range vs {
		if v.Scope == scope {
			out = append(out, v)
		}
	}
	return out
}

func joinViolations(vs []depcheck.Violation) string {
	lines := make([]string, 0, len(vs))
	for _, v := range vs {
		lines = append(lines, v.String())
	}
	return strings.Join(lines, "\n")
}

func writeJUnit(path string, rep *checkReport) error {
	data, err := xml.MarshalIndent(buildJUnit(rep), "", "  ")
	if err != nil {
		return err
	}
	data = append([]byte(xml.Header), data...)
	return support.WriteFileAtomic(path, data)
}
