package forms

import (
	"bufio"
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MinPasswordLength = 8

	msgPasswordTooShort = "Dieses Passwort ist zu kurz. Es muss mindestens %d Zeichen enthalten."
	msgPasswordCommon   = "Dieses Passwort ist zu üblich."
	msgPasswordNumeric  = "Dieses Passwort ist komplett numerisch."
	msgPasswordSimilar  = "Das Passwort ist zu ähnlich zu „%s“."

	maxSimilarity = 0.7
)

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

//go:embed common_passwords.txt
var commonPasswordsFile string

var commonPasswords = loadCommonPasswords(commonPasswordsFile)

func loadCommonPasswords(data string) map[string]struct{} {
	set := make(map[string]struct{})
	sc := bufio.NewScanner(strings.NewReader(data))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			set[strings.ToLower(line)] = struct{}{}
		}
	}
	return set
}

// UserAttribute is a piece of account data a password must not resemble.
type UserAttribute struct {
	Label string
	Value string
}

// ValidatePassword applies the storefront password policy and returns every
// violated rule as a German message. An empty result means the password is
// acceptable.
func ValidatePassword(password string, attrs ...UserAttribute) []string {
	var msgs []string

	for _, attr := range attrs {
		if similar(password, attr.Value) {
			msgs = append(msgs, fmt.Sprintf(msgPasswordSimilar, attr.Label))
			break
		}
	}

	if utf8.RuneCountInString(password) < MinPasswordLength {
		msgs = append(msgs, fmt.Sprintf(msgPasswordTooShort, MinPasswordLength))
	}

	if _, ok := commonPasswords[strings.ToLower(strings.TrimSpace(password))]; ok {
		msgs = append(msgs, msgPasswordCommon)
	}

	if isNumeric(password) {
		msgs = append(msgs, msgPasswordNumeric)
	}

	return msgs
}

// similar reports whether the password matches the attribute, or one of its
// word-separated parts, with a match ratio of at least maxSimilarity. Parts
// much shorter than the password are skipped.
func similar(password, value string) bool {
	p := []rune(strings.ToLower(password))
	v := strings.ToLower(strings.TrimSpace(value))
	if len(p) == 0 || v == "" {
		return false
	}

	for _, part := range append(nonWord.Split(v, -1), v) {
		r := []rune(part)
		if len(r) == 0 || exceedsLengthRatio(len(p), len(r)) {
			continue
		}
		if matchRatio(p, r) >= maxSimilarity {
			return true
		}
	}
	return false
}

func exceedsLengthRatio(passwordLen, valueLen int) bool {
	return passwordLen >= 10*valueLen && float64(valueLen) < maxSimilarity/2*float64(passwordLen)
}

// matchRatio is 2*M/T where M counts the runes of the longest common blocks
// found recursively and T is the combined length.
func matchRatio(a, b []rune) float64 {
	return 2 * float64(matchingRunes(a, b)) / float64(len(a)+len(b))
}

func matchingRunes(a, b []rune) int {
	i, j, k := longestMatch(a, b)
	if k == 0 {
		return 0
	}
	return k + matchingRunes(a[:i], b[:j]) + matchingRunes(a[i+k:], b[j+k:])
}

// longestMatch returns the earliest longest common run of a and b.
func longestMatch(a, b []rune) (besti, bestj, bestk int) {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := range a {
		for j := range b {
			if a[i] != b[j] {
				cur[j+1] = 0
				continue
			}
			cur[j+1] = prev[j] + 1
			if k := cur[j+1]; k > bestk {
				besti, bestj, bestk = i-k+1, j-k+1, k
			}
		}
		prev, cur = cur, prev
	}
	return besti, bestj, bestk
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
