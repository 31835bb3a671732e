// Package citation lifts inline citation markers out of action plan prose.
//
// A marker is a bracketed number such as "[1]". An occurrence either refers to a
// source (it is replaced by the footnote placeholder "[^1]") or defines it, in
// which case it is removed from the prose and its text becomes the citation
// label. A marker opening a line defines its source when the marker has already
// been referenced or when the line is part of the trailing sources block (the
// run of marker-led lines closing the text). A marker after a sentence defines
// its source under the same conditions. Markers inside code spans and fenced
// code blocks are left alone.
package citation

import (
	"regexp"
	"strings"

	"github.com/aretw0/waypoint/pkg/domain"
)

var (
	// DefaultPattern matches numeric markers. The first submatch is the marker text.
	DefaultPattern = regexp.MustCompile(`\[(\d+)\]`)

	bulletPrefix = regexp.MustCompile(`^\s*(?:[-*+]\s+|\d+[.)]\s+)?$`)
	urlPattern   = regexp.MustCompile(`https?://[^\s\]\)\>\<\"']+`)
)

// Result holds the residual content and the citations found in it.
type Result struct {
	Content   string            `json:"content"`
	Citations []domain.Citation `json:"citations"`
}

type config struct {
	pattern *regexp.Regexp
}

// Option configures Extract.
type Option func(*config)

// WithPattern overrides the marker syntax. The pattern must have one capturing
// group holding the marker text.
func WithPattern(re *regexp.Regexp) Option {
	return func(c *config) {
		if re != nil {
			c.pattern = re
		}
	}
}

// Placeholder returns the stable token a reference to marker is replaced with.
func Placeholder(marker string) string {
	return "[^" + marker + "]"
}

type occurrence struct {
	start, end int // byte range within the line
	marker     string
}

// line is one "\n"-separated line of the input, with its "\r" split off.
type line struct {
	body   string
	cr     bool
	offset int
	code   bool // fence delimiter or inside a fenced block
	occs   []occurrence
}

// Extract scans text left to right and returns the residual content plus the
// citations in first-occurrence order. It is pure and safe for concurrent use.
func Extract(text string, opts ...Option) Result {
	cfg := config{pattern: DefaultPattern}
	for _, opt := range opts {
		opt(&cfg)
	}

	lines := scanLines(cfg.pattern, text)
	sources := sourcesBlock(lines)

	citations := []domain.Citation{}
	index := make(map[string]int)
	changed := false
	out := make([]string, 0, len(lines))

	for li, ln := range lines {
		if ln.code || len(ln.occs) == 0 {
			out = append(out, ln.restore(ln.body))
			continue
		}
		changed = true

		body := ln.body
		var b strings.Builder
		cursor := 0
		defined := false

		for i, occ := range ln.occs {
			_, seen := index[occ.marker]
			if !seen {
				index[occ.marker] = len(citations)
				citations = append(citations, domain.Citation{
					Marker:   occ.marker,
					Position: ln.offset + occ.start,
				})
			}

			prefix := body[:occ.start]
			canDefine := seen || sources[li]
			atLineStart := bulletPrefix.MatchString(prefix)
			if !canDefine || (!atLineStart && !followsSentence(prefix)) {
				b.WriteString(body[cursor:occ.start])
				b.WriteString(Placeholder(occ.marker))
				cursor = occ.end
				continue
			}

			// Definition: the label runs to the next marker or the end of the line.
			labelEnd := len(body)
			if i+1 < len(ln.occs) {
				labelEnd = ln.occs[i+1].start
			}
			label := strings.TrimSuffix(strings.TrimSpace(body[occ.end:labelEnd]), ".")
			label = strings.TrimSpace(label)

			c := &citations[index[occ.marker]]
			if c.Label == "" && label != "" {
				c.Label = label
				c.URL = firstURL(label)
			}

			if atLineStart {
				cursor = labelEnd
				b.Reset()
			} else {
				b.WriteString(body[cursor:occ.start])
				cursor = labelEnd
			}
			defined = true
		}
		b.WriteString(body[cursor:])

		residual := strings.TrimRight(b.String(), " \t")
		if defined && strings.TrimSpace(residual) == "" {
			continue
		}
		out = append(out, ln.restore(residual))
	}

	if !changed {
		return Result{Content: text, Citations: citations}
	}

	content := strings.TrimRight(strings.Join(out, "\n"), "\r\n")
	switch {
	case strings.HasSuffix(text, "\r\n"):
		content += "\r\n"
	case strings.HasSuffix(text, "\n"):
		content += "\n"
	}
	return Result{Content: content, Citations: citations}
}

func (ln line) restore(body string) string {
	if ln.cr {
		return body + "\r"
	}
	return body
}

// scanLines splits text into lines, marking fenced code and locating markers
// outside of it.
func scanLines(re *regexp.Regexp, text string) []line {
	raw := strings.Split(text, "\n")
	lines := make([]line, len(raw))
	offset := 0
	fence := ""

	for i, r := range raw {
		body, cr := strings.CutSuffix(r, "\r")
		lines[i] = line{body: body, cr: cr, offset: offset}
		offset += len(r) + 1

		trimmed := strings.TrimLeft(body, " \t")
		switch {
		case fence != "":
			lines[i].code = true
			if strings.HasPrefix(trimmed, fence) {
				fence = ""
			}
			continue
		case strings.HasPrefix(trimmed, "```"), strings.HasPrefix(trimmed, "~~~"):
			fence = trimmed[:3]
			lines[i].code = true
			continue
		}
		lines[i].occs = findMarkers(re, body)
	}
	return lines
}

// sourcesBlock marks the trailing run of definition-shaped lines. Blank lines
// may separate them, and the run only counts when prose precedes it.
func sourcesBlock(lines []line) []bool {
	block := make([]bool, len(lines))
	for i := len(lines) - 1; i >= 0; i-- {
		ln := lines[i]
		if strings.TrimSpace(ln.body) == "" && !ln.code {
			continue
		}
		if ln.code || !definitionShaped(ln) {
			return block
		}
		block[i] = true
	}
	// Nothing but marker-led lines: there is no prose for them to annotate.
	return make([]bool, len(lines))
}

// definitionShaped reports whether ln opens with a marker and every later
// marker follows a sentence, as in "[1] Source A. [2] Source B.".
func definitionShaped(ln line) bool {
	if len(ln.occs) == 0 || !bulletPrefix.MatchString(ln.body[:ln.occs[0].start]) {
		return false
	}
	for _, occ := range ln.occs[1:] {
		if !followsSentence(ln.body[:occ.start]) {
			return false
		}
	}
	return true
}

// findMarkers returns the marker occurrences in text, skipping code spans,
// footnote placeholders, markdown links "[1](...)" and reference definitions
// "[1]: ...".
func findMarkers(re *regexp.Regexp, text string) []occurrence {
	matches := re.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	spans := codeSpans(text)
	occs := make([]occurrence, 0, len(matches))
	for _, m := range matches {
		start, end := m[0], m[1]
		if len(m) < 4 || m[2] < 0 {
			continue
		}
		if start > 0 && text[start-1] == '^' {
			continue
		}
		if end < len(text) && (text[end] == '(' || text[end] == ':') {
			continue
		}
		if inSpans(spans, start) {
			continue
		}
		occs = append(occs, occurrence{start: start, end: end, marker: text[m[2]:m[3]]})
	}
	return occs
}

// codeSpans returns the byte ranges of inline code in text. A span opens with a
// run of backticks and closes at the next run of the same length; an unclosed
// run is literal.
func codeSpans(text string) [][2]int {
	var spans [][2]int
	for i := 0; i < len(text); {
		if text[i] != '`' {
			i++
			continue
		}
		n := backticks(text, i)
		closeAt := -1
		for j := i + n; j < len(text); {
			if text[j] != '`' {
				j++
				continue
			}
			m := backticks(text, j)
			if m == n {
				closeAt = j + m
				break
			}
			j += m
		}
		if closeAt < 0 {
			i += n
			continue
		}
		spans = append(spans, [2]int{i, closeAt})
		i = closeAt
	}
	return spans
}

func backticks(text string, i int) int {
	n := 0
	for i+n < len(text) && text[i+n] == '`' {
		n++
	}
	return n
}

func inSpans(spans [][2]int, pos int) bool {
	for _, s := range spans {
		if pos >= s[0] && pos < s[1] {
			return true
		}
	}
	return false
}

// followsSentence reports whether prefix ends with a sentence terminator and
// at least one space.
func followsSentence(prefix string) bool {
	trimmed := strings.TrimRight(prefix, " \t")
	if trimmed == "" || len(trimmed) == len(prefix) {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?', ':':
		return true
	}
	return false
}

func firstURL(label string) string {
	return strings.TrimRight(urlPattern.FindString(label), ".,;")
}
