package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pavelanni/jsat/internal/scoring"
)

type evaluateOutput struct {
	Evaluation scoring.EvaluationResult `json:"evaluation"`
	Record     scoring.EvaluationRecord `json:"record"`
	Points     int                      `json:"points"`
}

func fakeJudge(t *testing.T, statusID int, description string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/submissions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"stdout": nil,
			"time":   nil,
			"status": map[string]any{"id": statusID, "description": description},
		})
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func runCLI(t *testing.T, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append(args, "--env-file", ""))
	return &out, cmd.Execute()
}

func writeCode(t *testing.T, code string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Main.java")
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		t.Fatalf("write code: %v", err)
	}
	return path
}

func TestEvaluateWithJudge(t *testing.T) {
	tests := []struct {
		name       string
		statusID   int
		status     string
		wantScore  int
		wantErrors int
		wantError  float64
	}{
		{"accepted run", 3, "Accepted", 5, 0, 10},
		{"compilation error", 6, "Compilation Error", 4, 1, 0},
		{"runtime error", 11, "Runtime Error (NZEC)", 4, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := fakeJudge(t, tt.statusID, tt.status)
			out, err := runCLI(t, "evaluate",
				"--code", writeCode(t, "abc"),
				"--expected", "abc",
				"--level", "5",
				"--judge-url", url,
			)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			var got evaluateOutput
			if err := json.Unmarshal(out.Bytes(), &got); err != nil {
				t.Fatalf("decode output %q: %v", out.String(), err)
			}
			if got.Evaluation.Score != tt.wantScore {
				t.Errorf("score = %d, want %d", got.Evaluation.Score, tt.wantScore)
			}
			if got.Evaluation.Details.TotalRuns != 1 || got.Evaluation.Details.TotalErrors != tt.wantErrors {
				t.Errorf("runs = %d errors = %d, want 1 and %d",
					got.Evaluation.Details.TotalRuns, got.Evaluation.Details.TotalErrors, tt.wantErrors)
			}
			if got.Record.ErrorScore == nil || *got.Record.ErrorScore != tt.wantError {
				t.Errorf("error_made = %v, want %v", got.Record.ErrorScore, tt.wantError)
			}
		})
	}
}

func TestEvaluateRejectsRunCountsWithJudge(t *testing.T) {
	url := fakeJudge(t, 3, "Accepted")
	_, err := runCLI(t, "evaluate",
		"--code", writeCode(t, "abc"),
		"--expected", "abc",
		"--judge-url", url,
		"--errors", "0",
	)
	if err == nil {
		t.Fatal("expected error when --errors is combined with --judge-url")
	}
}

func TestEvaluateOffline(t *testing.T) {
	out, err := runCLI(t, "evaluate",
		"--code", writeCode(t, "System.out.println(\"abc\");"),
		"--expected", "abc",
		"--level", "1",
	)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	var got evaluateOutput
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if got.Evaluation.Score != 1 || got.Points != 10 {
		t.Errorf("score = %d points = %d, want 1 and 10", got.Evaluation.Score, got.Points)
	}
}
