// Package parser turns Markdown inbox files into note fields.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidFrontmatter is returned when the YAML between the --- fences
// cannot be decoded.
var ErrInvalidFrontmatter = errors.New("parser: invalid frontmatter")

// Result holds the note fields found in a Markdown file.
type Result struct {
	Book         string
	Quote        string
	Page         string
	SameBookOnly bool
	Content      string
}

type frontmatter struct {
	Book         string `yaml:"book"`
	Quote        string `yaml:"quote"`
	Page         any    `yaml:"page"`
	SameBookOnly bool   `yaml:"same_book_only"`
}

// Parse extracts the note fields from raw Markdown bytes.
//
// Frontmatter keys win. Without a "book" key, a leading "# Heading" names the
// book; without a "quote" key, a leading "> ..." block is the quote. Both are
// removed from the content.
func Parse(data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	r := &Result{
		Book:         strings.TrimSpace(fm.Book),
		Quote:        strings.TrimSpace(fm.Quote),
		Page:         pageString(fm.Page),
		SameBookOnly: fm.SameBookOnly,
	}

	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	lines = skipBlank(lines)
	if r.Book == "" && len(lines) > 0 && strings.HasPrefix(lines[0], "# ") {
		r.Book = strings.TrimSpace(lines[0][2:])
		lines = skipBlank(lines[1:])
	}
	if r.Quote == "" {
		var quote []string
		for len(lines) > 0 && strings.HasPrefix(lines[0], ">") {
			quote = append(quote, strings.TrimSpace(strings.TrimPrefix(lines[0], ">")))
			lines = lines[1:]
		}
		r.Quote = strings.TrimSpace(strings.Join(quote, " "))
	}
	r.Content = strings.TrimSpace(strings.Join(lines, "\n"))
	return r, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (frontmatter, string, error) {
	const delim = "---"
	var fm frontmatter
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return fm, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		// No closing delimiter: a horizontal rule, not frontmatter.
		return fm, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return fm, "", fmt.Errorf("%w: %v", ErrInvalidFrontmatter, err)
	}
	return fm, body, nil
}

// pageString accepts "page: 42" as well as "page: xii-xiv".
func pageString(v any) string {
	switch p := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(p)
	default:
		return fmt.Sprint(p)
	}
}

func skipBlank(lines []string) []string {
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	return lines
}
