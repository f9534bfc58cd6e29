package scoring

import (
	"errors"
	"math"
	"strings"
	"testing"
)

const helloJava = `public class Main {
    public static void main(String[] args) {
        System.out.println("Hello, World!");
    }
}`

func TestEvaluateLevelNeverExceedsMax(t *testing.T) {
	exec := ExecutionResult{RuntimeSeconds: 0.01}
	for level := 1; level <= 5; level++ {
		res, err := EvaluateLevel(level, exec, helloJava, 5, 0, 1, `println("Hello, World!")`, ModeSubsequence)
		if err != nil {
			t.Fatalf("level %d: %v", level, err)
		}
		if res.MaxScore != level {
			t.Errorf("level %d: MaxScore = %d", level, res.MaxScore)
		}
		if res.Score > res.MaxScore {
			t.Errorf("level %d: Score %d > MaxScore %d", level, res.Score, res.MaxScore)
		}
		// Every criterion is met, so every level scores full marks.
		if res.Score != level || res.Percentage != 100 {
			t.Errorf("level %d: Score = %d, Percentage = %v", level, res.Score, res.Percentage)
		}
	}
}

func TestEvaluateLevelCriteria(t *testing.T) {
	long := strings.Repeat("x++;\n", 25)
	tests := []struct {
		name      string
		level     int
		runtime   float64
		code      string
		minutes   float64
		errorRuns int
		totalRuns int
		expected  string
		want      int
	}{
		{"level 1 correct", 1, 0, "abc", 90, 3, 5, "abc", 1},
		{"level 1 wrong", 1, 0, "abc", 1, 0, 1, "zzz", 0},
		{"level 2 slow", 2, 0, "abc", 30, 0, 1, "abc", 1},
		{"level 2 quick", 2, 0, "abc", 29.9, 0, 1, "abc", 2},
		{"level 3 quick and concise", 3, 0, "abc", 20, 0, 1, "abc", 3},
		{"level 3 too long", 3, 0, long + "abc", 20, 0, 1, "abc", 2},
		{"level 4 slow runtime", 4, 0.10, "abc", 20, 0, 1, "abc", 3},
		{"level 4 fast runtime", 4, 0.09, "abc", 20, 0, 1, "abc", 4},
		{"level 5 two runs", 5, 0.01, "abc", 20, 0, 2, "abc", 4},
		{"level 5 an error", 5, 0.01, "abc", 20, 1, 1, "abc", 4},
		{"level 5 no runs", 5, 0.01, "abc", 20, 0, 0, "abc", 4},
		{"level 5 clean single run", 5, 0.01, "abc", 20, 0, 1, "abc", 5},
		{"level 5 wrong but fast", 5, 0.01, "abc", 20, 0, 1, "xyz", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := EvaluateLevel(tt.level, ExecutionResult{RuntimeSeconds: tt.runtime}, tt.code, tt.minutes, tt.errorRuns, tt.totalRuns, tt.expected, ModeSubsequence)
			if err != nil {
				t.Fatalf("EvaluateLevel: %v", err)
			}
			if res.Score != tt.want {
				t.Errorf("Score = %d, want %d (details %+v)", res.Score, tt.want, res.Details)
			}
			if res.Score > res.MaxScore {
				t.Errorf("Score %d > MaxScore %d", res.Score, res.MaxScore)
			}
		})
	}
}

func TestEvaluateLevelThreeExample(t *testing.T) {
	code := strings.Repeat("line\n", 14) + "abc"
	res, err := EvaluateLevel(3, ExecutionResult{}, code, 20, 0, 1, "abc", ModeSubsequence)
	if err != nil {
		t.Fatalf("EvaluateLevel: %v", err)
	}
	if res.Details.LineCount != 15 {
		t.Errorf("LineCount = %d, want 15", res.Details.LineCount)
	}
	if res.Details.Correctness != FullCorrectness {
		t.Errorf("Correctness = %v, want %v", res.Details.Correctness, FullCorrectness)
	}
	if res.Score != 3 || res.MaxScore != 3 {
		t.Errorf("Score = %d/%d, want 3/3", res.Score, res.MaxScore)
	}
}

func TestEvaluateLevelExactMode(t *testing.T) {
	exec := ExecutionResult{RuntimeSeconds: 0.2, Stdout: "Hello, World!\n"}
	res, err := EvaluateLevel(2, exec, helloJava, 45, 0, 1, " Hello, World! ", ModeExact)
	if err != nil {
		t.Fatalf("EvaluateLevel: %v", err)
	}
	if res.Details.Correctness != 1 {
		t.Errorf("Correctness = %v, want 1", res.Details.Correctness)
	}
	if res.Score != 1 || res.Percentage != 50 {
		t.Errorf("Score = %d, Percentage = %v", res.Score, res.Percentage)
	}

	// Exact mode ignores the source and compares program output.
	res, _ = EvaluateLevel(1, ExecutionResult{Stdout: "Goodbye"}, "Hello, World!", 1, 0, 1, "Hello, World!", ModeExact)
	if res.Score != 0 {
		t.Errorf("Score = %d, want 0", res.Score)
	}
}

func TestEvaluateLevelInvalid(t *testing.T) {
	tests := []struct {
		name      string
		level     int
		runtime   float64
		minutes   float64
		errorRuns int
		totalRuns int
		wantErr   error
	}{
		{"level zero", 0, 0, 0, 0, 0, ErrInvalidLevel},
		{"level six", 6, 0, 0, 0, 0, ErrInvalidLevel},
		{"negative runtime", 3, -1, 0, 0, 0, ErrInvalidInput},
		{"NaN runtime", 3, math.NaN(), 0, 0, 0, ErrInvalidInput},
		{"negative minutes", 3, 0, -5, 0, 0, ErrInvalidInput},
		{"infinite minutes", 3, 0, math.Inf(1), 0, 0, ErrInvalidInput},
		{"negative runs", 3, 0, 0, 0, -1, ErrInvalidInput},
		{"errors exceed runs", 3, 0, 0, 2, 1, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EvaluateLevel(tt.level, ExecutionResult{RuntimeSeconds: tt.runtime}, "abc", tt.minutes, tt.errorRuns, tt.totalRuns, "abc", ModeSubsequence)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestEvaluateLevelDeterministic(t *testing.T) {
	a, _ := EvaluateLevel(4, ExecutionResult{RuntimeSeconds: 0.05}, helloJava, 12, 1, 3, "println", ModeSubsequence)
	b, _ := EvaluateLevel(4, ExecutionResult{RuntimeSeconds: 0.05}, helloJava, 12, 1, 3, "println", ModeSubsequence)
	if a != b {
		t.Errorf("results differ: %+v vs %+v", a, b)
	}
}

func TestCountLines(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"a\n\n  \nb\n", 2},
		{helloJava, 5},
	}
	for _, tt := range tests {
		if got := CountLines(tt.code); got != tt.want {
			t.Errorf("CountLines(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestRecordProgressiveUnlock(t *testing.T) {
	exec := ExecutionResult{RuntimeSeconds: 0.5}
	for level := 1; level <= 5; level++ {
		res, err := EvaluateLevel(level, exec, "abc", 12, 0, 1, "abc", ModeSubsequence)
		if err != nil {
			t.Fatalf("EvaluateLevel: %v", err)
		}
		rec := res.Record()
		if rec.Correctness != 10 {
			t.Errorf("level %d: Correctness = %v", level, rec.Correctness)
		}
		if (rec.TimeTakenMinutes != nil) != (level >= 2) {
			t.Errorf("level %d: TimeTakenMinutes set = %v", level, rec.TimeTakenMinutes != nil)
		}
		if (rec.LineCodeScore != nil) != (level >= 3) {
			t.Errorf("level %d: LineCodeScore set = %v", level, rec.LineCodeScore != nil)
		}
		if (rec.RuntimeScore != nil) != (level >= 4) {
			t.Errorf("level %d: RuntimeScore set = %v", level, rec.RuntimeScore != nil)
		}
		if (rec.ErrorScore != nil) != (level == 5) {
			t.Errorf("level %d: ErrorScore set = %v", level, rec.ErrorScore != nil)
		}
	}

	res, _ := EvaluateLevel(5, exec, "abc", 12, 0, 1, "abc", ModeSubsequence)
	rec := res.Record()
	if *rec.TimeTakenMinutes != 12 {
		t.Errorf("TimeTakenMinutes = %v, want 12", *rec.TimeTakenMinutes)
	}
	if *rec.LineCodeScore != 10 || *rec.ErrorScore != 10 {
		t.Errorf("expected line and error sub-scores of 10, got %v and %v", *rec.LineCodeScore, *rec.ErrorScore)
	}
	if *rec.RuntimeScore != 0 {
		t.Errorf("RuntimeScore = %v, want 0 for a 0.5s run", *rec.RuntimeScore)
	}
}

func TestRecordExactModeNormalized(t *testing.T) {
	res, _ := EvaluateLevel(1, ExecutionResult{Stdout: "42"}, "", 0, 0, 1, "42", ModeExact)
	if rec := res.Record(); rec.Correctness != 10 {
		t.Errorf("Correctness = %v, want 10", rec.Correctness)
	}
}

func TestPoints(t *testing.T) {
	tests := []struct {
		score, max int
		want       int
	}{
		{0, 1, 0},
		{1, 1, 10},
		{1, 2, 5},
		{2, 3, 7},
		{4, 5, 8},
	}
	for _, tt := range tests {
		r := EvaluationResult{Score: tt.score, MaxScore: tt.max, Percentage: float64(tt.score) / float64(tt.max) * 100}
		if got := r.Points(); got != tt.want {
			t.Errorf("Points(%d/%d) = %d, want %d", tt.score, tt.max, got, tt.want)
		}
	}
}
