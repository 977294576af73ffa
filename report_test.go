package main

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/ajranjith/vndk-depcheck/internal/depcheck"
)

func sampleReport() *checkReport {
	vendor := depcheck.Violation{TargetPath: "/vendor/lib64/libbar.so", Bitness: 64, Scope: depcheck.ScopeVendor, Disallowed: []string{"libbaz.so"}}
	sphal := depcheck.Violation{TargetPath: "/vendor/lib64/egl/libEGL_x.so", Bitness: 64, Scope: depcheck.ScopeSPHAL, Disallowed: []string{"libbase.so"}}
	pass := &depcheck.Pass{Bitness: 64, Deferrable: []depcheck.Violation{vendor}, Fatal: []depcheck.Violation{sphal}}
	return &checkReport{
		Passes:     []*depcheck.Pass{pass},
		Violations: pass.Violations(),
		Waived:     pass.Waived(),
		ErrorCount: 1,
		Status:     "FAIL",
	}
}

func TestBuildSARIF_WaivedAreWarnings(t *testing.T) {
	doc := buildSARIF(sampleReport())
	results := doc.Runs[0].Results
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].RuleID != "vndk-dep/sp-hal" || results[0].Level != "error" {
		t.Fatalf("unexpected first result: %+v", results[0])
	}
	if results[1].RuleID != "vndk-dep/vendor" || results[1].Level != "warning" {
		t.Fatalf("unexpected second result: %+v", results[1])
	}
	if uri := results[0].Locs[0].PhysicalLocation.ArtifactLocation.URI; uri != "vendor/lib64/egl/libEGL_x.so" {
		t.Fatalf("unexpected uri: %s", uri)
	}
}

func TestBuildJUnit_WaivedAreSkipped(t *testing.T) {
	doc := buildJUnit(sampleReport())
	if len(doc.Testsuites) != 2 {
		t.Fatalf("expected read and 64-bit suites, got %d", len(doc.Testsuites))
	}
	suite := doc.Testsuites[1]
	if suite.Failures != 1 || suite.Skipped != 1 || suite.Tests != 3 {
		t.Fatalf("unexpected counts: %+v", suite)
	}
	for _, tc := range suite.Cases {
		switch depcheck.Scope(tc.Name) {
		case depcheck.ScopeVendor:
			if tc.Skipped == nil || tc.Failure != nil {
				t.Fatalf("vendor case should be skipped: %+v", tc)
			}
		case depcheck.ScopeSPHAL:
			if tc.Failure == nil || !strings.Contains(tc.Failure.Body, "libbase.so") {
				t.Fatalf("sp-hal case should fail: %+v", tc)
			}
		case depcheck.ScopeVndkSpExt:
			if tc.Failure != nil || tc.Skipped != nil {
				t.Fatalf("vndk-sp-ext case should pass: %+v", tc)
			}
		}
	}

	data, err := xml.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.HasPrefix(string(data), "<testsuites>") {
		t.Fatalf("unexpected root element: %.40s", data)
	}
}
