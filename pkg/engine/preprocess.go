package engine

import (
	"sort"
	"strings"
)

// scriptKeywords are the keyword arguments the mesh builtins accept.
var scriptKeywords = map[string]bool{
	"name":  true,
	"id":    true,
	"cells": true,
}

// keywordList returns the accepted keywords for error messages.
func keywordList() string {
	names := make([]string, 0, len(scriptKeywords))
	for k := range scriptKeywords {
		names = append(names, ":"+k)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// scriptRewriter turns mesh script source into zygomys source. It tracks
// line and column so a rejected keyword is reported where it appears.
type scriptRewriter struct {
	src  []byte
	out  []byte
	pos  int
	line int
	col  int
	errs []EvalError
}

// preprocessSource rewrites a mesh script for zygomys:
//
//   - :name, :id and :cells at the start of a token become the strings
//     "__kw_name" and so on, which parseArgs recognises. Any other keyword
//     is an EvalError.
//   - side-length style identifiers become side_length, since zygomys
//     reads the hyphen as subtraction.
//   - ; comments become // comments.
//
// String literals and comments pass through untouched.
func preprocessSource(source string) (string, []EvalError) {
	r := &scriptRewriter{
		src:  []byte(source),
		out:  make([]byte, 0, len(source)+len(source)/4),
		line: 1,
		col:  1,
	}
	for r.pos < len(r.src) {
		switch c := r.src[r.pos]; {
		case c == '"' || c == '`':
			r.copyString(c)
		case c == ';':
			r.rewriteComment()
		case c == ':' && r.atTokenStart():
			r.rewriteKeyword()
		case c == '-' && r.inIdentifier():
			r.out = append(r.out, '_')
			r.advance()
		default:
			r.out = append(r.out, c)
			r.advance()
		}
	}
	return string(r.out), r.errs
}

func (r *scriptRewriter) advance() {
	if r.src[r.pos] == '\n' {
		r.line++
		r.col = 1
	} else {
		r.col++
	}
	r.pos++
}

func (r *scriptRewriter) emit() {
	r.out = append(r.out, r.src[r.pos])
	r.advance()
}

// copyString copies a literal closed by quote. Backslash escapes apply to
// double-quoted strings only.
func (r *scriptRewriter) copyString(quote byte) {
	r.emit()
	for r.pos < len(r.src) && r.src[r.pos] != quote {
		if quote == '"' && r.src[r.pos] == '\\' && r.pos+1 < len(r.src) {
			r.emit()
		}
		r.emit()
	}
	if r.pos < len(r.src) {
		r.emit()
	}
}

func (r *scriptRewriter) rewriteComment() {
	r.out = append(r.out, '/', '/')
	for r.pos < len(r.src) && r.src[r.pos] == ';' {
		r.advance()
	}
	for r.pos < len(r.src) && r.src[r.pos] != '\n' {
		r.emit()
	}
}

func (r *scriptRewriter) rewriteKeyword() {
	end := r.pos + 1
	for end < len(r.src) && isKeywordChar(r.src[end]) {
		end++
	}
	word := string(r.src[r.pos+1 : end])
	if word == "" || !isLetter(word[0]) {
		// := and bare colons belong to zygomys.
		r.emit()
		return
	}
	if !scriptKeywords[word] {
		r.errs = append(r.errs, EvalError{
			Line:    r.line,
			Col:     r.col,
			Message: "unknown keyword :" + word + " (accepted: " + keywordList() + ")",
		})
	}
	r.out = append(r.out, '"')
	r.out = append(r.out, kwPrefix...)
	r.out = append(r.out, word...)
	r.out = append(r.out, '"')
	for r.pos < end {
		r.advance()
	}
}

// atTokenStart reports whether the byte at pos begins a token.
func (r *scriptRewriter) atTokenStart() bool {
	if r.pos == 0 {
		return true
	}
	switch r.src[r.pos-1] {
	case ' ', '\t', '\n', '\r', '(', '[', '{':
		return true
	}
	return false
}

// inIdentifier reports whether the hyphen at pos joins two identifier
// parts rather than acting as a minus sign.
func (r *scriptRewriter) inIdentifier() bool {
	if r.pos == 0 || r.pos+1 >= len(r.src) {
		return false
	}
	prev, next := r.src[r.pos-1], r.src[r.pos+1]
	return (isLetter(prev) || isDigit(prev) || prev == '_') && isLetter(next)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isKeywordChar(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '_' || c == '-'
}
