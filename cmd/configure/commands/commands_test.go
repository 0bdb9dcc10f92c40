package commands

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/benvon/scam-hunter/internal/config"
	"github.com/benvon/scam-hunter/internal/models"
	"github.com/benvon/scam-hunter/internal/storage"
	"github.com/spf13/cobra"
)

func testConfig() *config.Config {
	return &config.Config{
		RateLimits: map[string]config.RateLimit{
			config.NamespaceUpload:   {MaxRequests: 5, Window: time.Minute},
			config.NamespaceAnalysis: {MaxRequests: 10, Window: time.Minute},
		},
		BurstRate:       "20-S",
		CleanupInterval: 5 * time.Minute,
	}
}

func testEnv(store storage.Provider) Env {
	return Env{
		Load: func() (*config.Config, error) { return testConfig(), nil },
		OpenStore: func(context.Context, *config.Config) (storage.Provider, io.Closer, error) {
			return store, nil, nil
		},
	}
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRatelimitList(t *testing.T) {
	t.Parallel()
	out, err := execute(t, NewRatelimitCmd(testEnv(nil)), "list")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	analysis := strings.Index(out, "analysis   10 requests per 1m0s")
	upload := strings.Index(out, "upload     5 requests per 1m0s")
	if analysis < 0 || upload < 0 || analysis > upload {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "Counters: in-memory") {
		t.Errorf("expected in-memory counters in output:\n%s", out)
	}
}

func TestHistoryList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := storage.NewMemoryProvider()
	positive := models.FeedbackPositive
	records := []*models.StoredAnalysis{
		{
			ID:        "first",
			UserID:    "user-1",
			Timestamp: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
			Result:    models.AnalysisResult{Classification: models.ClassificationSafe, RiskScore: 10},
		},
		{
			ID:        "second",
			UserID:    "user-1",
			Timestamp: time.Date(2026, 1, 1, 12, 5, 0, 0, time.UTC),
			Result:    models.AnalysisResult{Classification: models.ClassificationHighRisk, RiskScore: 90},
			Feedback:  &positive,
		},
	}
	for _, rec := range records {
		if _, err := store.SaveAnalysis(ctx, rec); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	out, err := execute(t, NewHistoryCmd(testEnv(store)), "list", "--user", "user-1")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	second, first := strings.Index(out, "second"), strings.Index(out, "first")
	if second < 0 || first < 0 || second > first {
		t.Errorf("expected most recent first:\n%s", out)
	}
	if !strings.Contains(out, "HIGH_RISK") || !strings.Contains(out, "positive") {
		t.Errorf("missing columns:\n%s", out)
	}

	out, err = execute(t, NewHistoryCmd(testEnv(store)), "list", "--user", "nobody")
	if err != nil || !strings.Contains(out, "No analyses") {
		t.Errorf("empty history: err=%v out=%s", err, out)
	}

	if _, err := execute(t, NewHistoryCmd(testEnv(store)), "list"); err == nil {
		t.Error("expected error without --user")
	}
}

func TestSessionShow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := storage.NewMemoryProvider()
	if _, err := store.CreateSession(ctx, "user-1"); err != nil {
		t.Fatalf("create: %v", err)
	}
	n := 3
	if err := store.UpdateSession(ctx, "user-1", models.SessionUpdate{AnalysisCount: &n}); err != nil {
		t.Fatalf("update: %v", err)
	}

	out, err := execute(t, NewSessionCmd(testEnv(store)), "show", "--user", "user-1")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "Analyses:    3") {
		t.Errorf("unexpected output:\n%s", out)
	}

	if _, err := execute(t, NewSessionCmd(testEnv(store)), "show", "--user", "ghost"); err == nil {
		t.Error("expected error for unknown session")
	}
}

func TestStoreRequiresDatabase(t *testing.T) {
	t.Parallel()
	env := Env{Load: func() (*config.Config, error) { return testConfig(), nil }, OpenStore: openPostgres}
	_, err := execute(t, NewSessionCmd(env), "show", "--user", "user-1")
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("err = %v, want DATABASE_URL error", err)
	}
}

func TestRunChecks(t *testing.T) {
	t.Parallel()
	checks := []check{
		{name: "postgres", configured: true, run: func(context.Context) error { return nil }},
		{name: "redis", configured: false},
		{name: "minio", configured: true, run: func(context.Context) error { return errors.New("bucket missing") }},
	}
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	err := runChecks(cmd, checks, time.Second)
	if err == nil || !strings.Contains(err.Error(), "minio: bucket missing") {
		t.Errorf("err = %v", err)
	}
	got := out.String()
	for _, want := range []string{"✓ postgres is reachable", "redis: not configured", "✗ minio: bucket missing"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestBackendChecks_Skipped(t *testing.T) {
	t.Parallel()
	for _, c := range backendChecks(testConfig()) {
		if c.configured {
			t.Errorf("%s should not be configured", c.name)
		}
	}
}
