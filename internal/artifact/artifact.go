// Package artifact extracts the embedded query payload and declared cost
// from generated integration sources, and owns the textual grammar used to
// rewrite the declared cost in place.
package artifact

import (
	"os"
	"regexp"
	"strconv"

	"github.com/rotisserie/eris"
)

// The two matchers are deliberately independent: a file can have a payload
// without a locatable cost literal and vice versa, and the two failure modes
// are reported separately.
var (
	// payloadRe captures the query payload embedded in an exit('...') wrapper.
	// The payload commonly spans multiple lines, hence (?s).
	payloadRe = regexp.MustCompile(`(?s)exit\('(.*?)'\);`)

	// costRe captures the integer literal returned by the expected-cost
	// accessor. The accessor name is the anchor; a bare integer elsewhere in
	// the file never matches.
	costRe = regexp.MustCompile(`(?s)getExpectedQueryCost\(\)[^{]*\{\s*return\s+(\d+)\s*;`)
)

// Parsed is the extraction result for one artifact's text.
type Parsed struct {
	Payload      string
	PayloadFound bool
	DeclaredCost int
	CostFound    bool
}

// Parse runs both matchers over text. Neither failing is an error here;
// absence is part of the result and the caller decides what it means.
func Parse(text string) Parsed {
	var p Parsed

	if m := payloadRe.FindStringSubmatch(text); m != nil {
		p.Payload = m[1]
		p.PayloadFound = true
	}

	if m := costRe.FindStringSubmatch(text); m != nil {
		// \d+ can still overflow int on absurd input.
		if v, err := strconv.Atoi(m[1]); err == nil {
			p.DeclaredCost = v
			p.CostFound = true
		}
	}

	return p
}

// ReplaceDeclaredCost rewrites the declared-cost literal in text from old to
// new. It fails if the cost literal cannot be located or does not currently
// equal old; the caller uses that as an optimistic-concurrency precondition.
func ReplaceDeclaredCost(text string, old, new int) (string, error) {
	idx := costRe.FindStringSubmatchIndex(text)
	if idx == nil {
		return "", eris.New("artifact: declared-cost literal not found")
	}

	start, end := idx[2], idx[3]
	current, err := strconv.Atoi(text[start:end])
	if err != nil {
		return "", eris.Wrap(err, "artifact: parse declared-cost literal")
	}
	if current != old {
		return "", eris.Errorf("artifact: declared cost is %d, expected %d", current, old)
	}

	return text[:start] + strconv.Itoa(new) + text[end:], nil
}

// Scan enumerates artifact files under dir whose base name matches pattern
// (filepath.Match syntax), in deterministic lexical walk order. Failing to
// enumerate the directory is batch-fatal and returned as an error.
func Scan(dir, pattern string) ([]string, error) {
	paths, err := walk(dir, pattern)
	if err != nil {
		return nil, eris.Wrapf(err, "artifact: scan %s", dir)
	}
	return paths, nil
}

// ReadFile loads one artifact's current on-disk content. Artifacts are read
// fresh at both analysis and patch time; nothing caches content across
// phases.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "artifact: read %s", path)
	}
	return string(data), nil
}
