package app

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("SWAPROUTER_PRIVATE_KEY", "")
}

func TestRunnerVersion(t *testing.T) {
	isolateEnv(t)
	var stdout, stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{"version"})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, stderr.String())
	}
	if !strings.HasPrefix(stdout.String(), "router ") {
		t.Fatalf("unexpected version output: %s", stdout.String())
	}
}

func TestRunnerProvidersJSON(t *testing.T) {
	isolateEnv(t)
	var stdout, stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{"providers", "--json"})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, stderr.String())
	}
	var listings []map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &listings); err != nil {
		t.Fatalf("parse output: %v output=%s", err, stdout.String())
	}
	if len(listings) != 3 {
		t.Fatalf("expected 3 providers, got %d", len(listings))
	}
}

func TestRunnerConflictingOutputFlags(t *testing.T) {
	isolateEnv(t)
	var stdout, stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{"providers", "--json", "--plain"})
	if code != 2 {
		t.Fatalf("expected usage exit code, got %d", code)
	}
	if !strings.Contains(stderr.String(), "--json and --plain") {
		t.Fatalf("error must reach stderr, got %s", stderr.String())
	}
}

func TestRunnerQuoteRejectsUnknownChain(t *testing.T) {
	isolateEnv(t)
	var stdout, stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{
		"quote",
		"--from-chain", "notachain",
		"--to-chain", "base",
		"--from-token", "USDC",
		"--to-token", "USDC",
		"--amount", "10",
		"--user", "Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS",
	})
	if code != 10 {
		t.Fatalf("expected validation exit code, got %d stderr=%s", code, stderr.String())
	}
}

func TestRunnerExecuteRequiresSigningKey(t *testing.T) {
	isolateEnv(t)
	var stdout, stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	code := r.Run([]string{
		"execute",
		"--from-chain", "solana",
		"--to-chain", "base",
		"--from-token", "USDC",
		"--to-token", "USDC",
		"--amount", "10",
	})
	if code != 2 {
		t.Fatalf("expected usage exit code, got %d stderr=%s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "signing key") {
		t.Fatalf("unexpected error: %s", stderr.String())
	}
}

func TestParseAmountUnknownDecimalsRequiresBaseUnits(t *testing.T) {
	isolateEnv(t)
	s := &runtimeState{runner: NewRunnerWithWriters(&bytes.Buffer{}, &bytes.Buffer{})}
	_, err := s.buildRequest(swapFlags{
		fromChain: "solana",
		toChain:   "solana",
		fromToken: "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB264",
		toToken:   "USDC",
		amount:    "1.5",
		user:      "Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS",
	})
	if err == nil {
		t.Fatal("decimal amount for an unregistered token must error")
	}
	if !strings.Contains(err.Error(), "base units") {
		t.Fatalf("unexpected error: %v", err)
	}
}
