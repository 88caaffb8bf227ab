package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleArtifact = `<?php
// Generated. Do not edit.
class ProductQueryCheck extends IntegrationCheck
{
    public function run(): void
    {
        exit('{"query": "{ product(id: \"{{Id}}\") { title } }"}');
    }

    public function getExpectedQueryCost(): int
    {
        return 15;
    }
}
`

func TestParse(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		wantPayload  string
		wantFound    bool
		wantCost     int
		wantCostOK   bool
	}{
		{
			name:        "full_artifact",
			text:        sampleArtifact,
			wantPayload: `{"query": "{ product(id: \"{{Id}}\") { title } }"}`,
			wantFound:   true,
			wantCost:    15,
			wantCostOK:  true,
		},
		{
			name: "multiline_payload",
			text: "exit('{\"query\": \"{\n  shop { name }\n}\"}');\nfunction getExpectedQueryCost(): int { return 3; }",
			wantPayload: "{\"query\": \"{\n  shop { name }\n}\"}",
			wantFound:   true,
			wantCost:    3,
			wantCostOK:  true,
		},
		{
			name:       "payload_missing_cost_present",
			text:       "class C {\n  public function getExpectedQueryCost(): int\n  {\n      return 42;\n  }\n}",
			wantCost:   42,
			wantCostOK: true,
		},
		{
			name:        "payload_present_cost_missing",
			text:        `exit('{"query": "{ x }"}');`,
			wantPayload: `{"query": "{ x }"}`,
			wantFound:   true,
		},
		{
			name: "neither",
			text: "just some text with a number 68 in it",
		},
		{
			name: "other_integers_do_not_match_cost",
			text: "return 99;\nexit('{\"query\":\"{ x }\"}');\nfunction getExpectedQueryCost(): int { return 7; }\nreturn 100;",
			wantPayload: `{"query":"{ x }"}`,
			wantFound:   true,
			wantCost:    7,
			wantCostOK:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.text)
			assert.Equal(t, tt.wantFound, got.PayloadFound)
			assert.Equal(t, tt.wantPayload, got.Payload)
			assert.Equal(t, tt.wantCostOK, got.CostFound)
			assert.Equal(t, tt.wantCost, got.DeclaredCost)
		})
	}
}

func TestParseFirstPayloadWins(t *testing.T) {
	text := `exit('{"query":"{ a }"}'); exit('{"query":"{ b }"}');`
	got := Parse(text)
	require.True(t, got.PayloadFound)
	assert.Equal(t, `{"query":"{ a }"}`, got.Payload)
}

func TestReplaceDeclaredCost(t *testing.T) {
	updated, err := ReplaceDeclaredCost(sampleArtifact, 15, 72)
	require.NoError(t, err)

	got := Parse(updated)
	require.True(t, got.CostFound)
	assert.Equal(t, 72, got.DeclaredCost)

	// Nothing else changes.
	assert.Equal(t, got.Payload, Parse(sampleArtifact).Payload)
	restored, err := ReplaceDeclaredCost(updated, 72, 15)
	require.NoError(t, err)
	assert.Equal(t, sampleArtifact, restored)
}

func TestReplaceDeclaredCostPrecondition(t *testing.T) {
	_, err := ReplaceDeclaredCost(sampleArtifact, 68, 72)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declared cost is 15")
}

func TestReplaceDeclaredCostNotFound(t *testing.T) {
	_, err := ReplaceDeclaredCost("no cost accessor here", 1, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestReplaceDeclaredCostDoesNotTouchOtherLiterals(t *testing.T) {
	text := "limit = 15;\nfunction getExpectedQueryCost(): int { return 15; }\nretries = 15;"
	updated, err := ReplaceDeclaredCost(text, 15, 20)
	require.NoError(t, err)
	assert.Equal(t, "limit = 15;\nfunction getExpectedQueryCost(): int { return 20; }\nretries = 15;", updated)
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))

	files := []string{"b_check.php", "a_check.php", "nested/c_check.php", "notes.txt"}
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("x"), 0o644))
	}

	paths, err := Scan(dir, "*.php")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a_check.php"),
		filepath.Join(dir, "b_check.php"),
		filepath.Join(dir, "nested", "c_check.php"),
	}, paths)
}

func TestScanMissingDir(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "does-not-exist"), "*")
	require.Error(t, err)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.php")
	require.NoError(t, os.WriteFile(path, []byte(sampleArtifact), 0o644))

	text, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleArtifact, text)

	_, err = ReadFile(filepath.Join(dir, "missing.php"))
	require.Error(t, err)
}
