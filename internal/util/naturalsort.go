// Package util holds small helpers for file names and ordering.
package util

import (
	"regexp"
	"strconv"
	"strings"
)

var tokenizer = regexp.MustCompile(`(\d+|\D+)`)

type token struct {
	text  string
	num   uint64
	isNum bool
}

func tokenize(s string) []token {
	parts := tokenizer.FindAllString(s, -1)
	tokens := make([]token, len(parts))
	for i, p := range parts {
		if n, err := strconv.ParseUint(p, 10, 64); err == nil {
			tokens[i] = token{num: n, isNum: true}
		} else {
			tokens[i] = token{text: strings.ToLower(p)}
		}
	}
	return tokens
}

// NaturalLess orders names so that embedded numbers compare by value:
// "model_2.pdb" sorts before "model_10.pdb". Letters compare case-insensitively.
func NaturalLess(a, b string) bool {
	ta, tb := tokenize(a), tokenize(b)
	for i := 0; i < min(len(ta), len(tb)); i++ {
		x, y := ta[i], tb[i]
		switch {
		case x.isNum != y.isNum:
			return x.isNum
		case x.isNum && x.num != y.num:
			return x.num < y.num
		case !x.isNum && x.text != y.text:
			return x.text < y.text
		}
	}
	if len(ta) != len(tb) {
		return len(ta) < len(tb)
	}
	// Equal up to case and leading zeros.
	return a < b
}
