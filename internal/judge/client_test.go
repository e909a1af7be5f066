package judge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func chatServer(t *testing.T, content string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestJudgeParsesVerdict(t *testing.T) {
	content := `{"roast1_score": 75, "roast2_score": 82, "roast1_breakdown": "b1", "roast2_breakdown": "b2", "commentary": "savage"}`
	srv := chatServer(t, content, http.StatusOK)

	c := NewClient(srv.URL, "test-key")
	v, err := c.Judge(context.Background(), "prompt", "r1", "r2")
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if v.Score1 != 75 || v.Score2 != 82 || v.Breakdown1 != "b1" || v.Commentary != "savage" {
		t.Fatalf("verdict = %+v", v)
	}
}

func TestJudgeStripsCodeFences(t *testing.T) {
	content := "```json\n{\"roast1_score\": 60, \"roast2_score\": 90, \"roast1_breakdown\": \"b\", \"roast2_breakdown\": \"b\", \"commentary\": \"c\"}\n```"
	srv := chatServer(t, content, http.StatusOK)

	c := NewClient(srv.URL, "test-key")
	v, err := c.Judge(context.Background(), "p", "r1", "r2")
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if v.Score1 != 60 || v.Score2 != 90 {
		t.Fatalf("verdict = %+v", v)
	}
}

func TestJudgeTieBreak(t *testing.T) {
	content := `{"roast1_score": 70, "roast2_score": 70, "roast1_breakdown": "b", "roast2_breakdown": "b", "commentary": "c"}`
	srv := chatServer(t, content, http.StatusOK)

	c := NewClient(srv.URL, "test-key", WithRand(func(n int) int { return 2 }))
	v, err := c.Judge(context.Background(), "p", "r1", "r2")
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if v.Score1 != 73 || v.Score2 != 70 {
		t.Fatalf("tie-break verdict = %+v", v)
	}
}

func TestJudgeBadVerdicts(t *testing.T) {
	cases := map[string]string{
		"not json":        "the first roast was better",
		"missing scores":  `{"roast1_breakdown": "b", "commentary": "c"}`,
		"score too high":  `{"roast1_score": 120, "roast2_score": 80, "commentary": "c"}`,
		"score negative":  `{"roast1_score": -5, "roast2_score": 80, "commentary": "c"}`,
		"no commentary":   `{"roast1_score": 70, "roast2_score": 80, "commentary": "  "}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			srv := chatServer(t, content, http.StatusOK)
			c := NewClient(srv.URL, "test-key")
			if _, err := c.Judge(context.Background(), "p", "r1", "r2"); !errors.Is(err, ErrBadVerdict) {
				t.Fatalf("err = %v, want ErrBadVerdict", err)
			}
		})
	}
}

func TestJudgeHTTPError(t *testing.T) {
	srv := chatServer(t, "", http.StatusTooManyRequests)
	c := NewClient(srv.URL, "test-key")
	if _, err := c.Judge(context.Background(), "p", "r1", "r2"); err == nil {
		t.Fatal("expected error on 429")
	}
}

func TestStripFences(t *testing.T) {
	if got := stripFences("```json\n{\"a\":1}\n```"); got != `{"a":1}` {
		t.Errorf("json fence: %q", got)
	}
	if got := stripFences("```\n{\"a\":1}\n```"); got != `{"a":1}` {
		t.Errorf("bare fence: %q", got)
	}
	if got := stripFences(`{"a":1}`); got != `{"a":1}` {
		t.Errorf("no fence: %q", got)
	}
}
