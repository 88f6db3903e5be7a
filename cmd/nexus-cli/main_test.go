package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

const snapshotPath = "testdata/snapshot.json"

func TestRunTable(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"-vda", "TX", snapshotPath}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := out.String()

	var txLine string
	for _, line := range strings.Split(got, "\n") {
		if txLine == "" && strings.HasPrefix(strings.TrimSpace(line), "TX") && strings.Contains(line, "2022") {
			txLine = line
		}
	}
	if !strings.Contains(txLine, "economic") {
		t.Errorf("TX 2022 row = %q, want economic nexus", txLine)
	}
	for _, want := range []string{"1 states with nexus", "Voluntary disclosure", "saved"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestRunJSON(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"-json", "-workers", "1", snapshotPath}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}

	var doc struct {
		Results []struct {
			Jurisdiction string `json:"jurisdiction"`
			Status       string `json:"status"`
		} `json:"results"`
		VDA *json.RawMessage `json:"vda"`
	}
	if err := json.Unmarshal(out.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v\n%s", err, out.String())
	}
	statuses := map[string]string{}
	for _, r := range doc.Results {
		statuses[r.Jurisdiction] = r.Status
	}
	if statuses["TX"] != "economic" || statuses["NV"] != "none" {
		t.Errorf("statuses = %v, want TX economic and NV none", statuses)
	}
	if doc.VDA != nil {
		t.Error("vda present without -vda")
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no file", nil},
		{"missing file", []string{"testdata/nope.json"}},
		{"bad ratio", []string{"-ratio", "most", snapshotPath}},
	}
	for _, tt := range tests {
		if err := run(tt.args, &bytes.Buffer{}); err == nil {
			t.Errorf("%s: run succeeded, want error", tt.name)
		}
	}
}
