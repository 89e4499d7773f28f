package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestContextFieldsReachOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: "debug", Format: "json", Output: &buf, ServiceName: "worker"})

	ctx := l.WithContext(context.Background())
	ctx = SetJobID(ctx, "job-1")
	ctx = SetStage(ctx, "extract")

	With(Fields{"entries": 4}).WithDuration(12).Info(ctx, "extracted %d entries", 4)

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}

	want := map[string]interface{}{
		"service":     "worker",
		"job_id":      "job-1",
		"stage":       "extract",
		"message":     "extracted 4 entries",
		"level":       "info",
		"duration_ms": float64(12),
		"entries":     float64(4),
	}
	for k, v := range want {
		if line[k] != v {
			t.Errorf("field %s = %v, want %v", k, line[k], v)
		}
	}
	if _, ok := line["timestamp"]; !ok {
		t.Error("missing timestamp field")
	}
	if GetJobID(ctx) != "job-1" {
		t.Errorf("GetJobID = %q", GetJobID(ctx))
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	var buf bytes.Buffer
	prev := GetDefault()
	defer SetDefaultLogger(prev)

	SetDefaultLogger(New(&Config{Level: "info", Format: "text", Output: &buf, ServiceName: "api"}))
	SetDefaultLogger(nil)

	CtxWarn(context.Background(), "queue %s", "empty")
	CtxDebug(context.Background(), "hidden")

	out := buf.String()
	if !strings.Contains(out, "queue empty") || !strings.Contains(out, "service=api") {
		t.Errorf("unexpected text output: %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line written at info level: %q", out)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_MAX_SIZE", "not-a-number")
	t.Setenv("SERVICE_NAME", "")

	cfg := LoadFromEnv("worker")
	if cfg.Level != "warn" {
		t.Errorf("Level = %q", cfg.Level)
	}
	if cfg.MaxSize != 100 {
		t.Errorf("MaxSize = %d, want default 100", cfg.MaxSize)
	}
	if cfg.ServiceName != "worker" {
		t.Errorf("ServiceName = %q", cfg.ServiceName)
	}
	if !strings.HasSuffix(cfg.LogFile, "worker.log") {
		t.Errorf("LogFile = %q", cfg.LogFile)
	}
}
