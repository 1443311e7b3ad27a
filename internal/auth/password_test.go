package auth

import (
	"strings"
	"testing"
	"testing/quick"
	"unicode/utf8"
)

func TestPasswordPolicy(t *testing.T) {
	cases := []struct {
		pw   string
		want bool
	}{
		{"abcdE12!?", true},
		{"abcdE12£ ", true},
		{"abcE12!?x", true},
		{"abcdE1!?x", false}, // one digit
		{"abcdE12!x", false}, // one symbol
		{"abcE12!?", false},  // three lowercase
		{"abcde12!?", false}, // no uppercase
		{"aB12!?", false},    // short
		{"", false},
	}
	for _, c := range cases {
		if got := DefaultPolicy.Check(c.pw); got != c.want {
			t.Errorf("Check(%q) = %v, want %v", c.pw, got, c.want)
		}
	}
}

func TestPasswordPolicyProperty(t *testing.T) {
	count := func(s string, in func(rune) bool) int {
		n := 0
		for _, r := range s {
			if in(r) {
				n++
			}
		}
		return n
	}
	prop := func(s string) bool {
		digits := count(s, func(r rune) bool { return r >= '0' && r <= '9' })
		lower := count(s, func(r rune) bool { return r >= 'a' && r <= 'z' })
		upper := count(s, func(r rune) bool { return r >= 'A' && r <= 'Z' })
		syms := count(s, func(r rune) bool { return strings.ContainsRune(symbols, r) })
		want := utf8.RuneCountInString(s) >= 8 && digits >= 2 && syms >= 2 && lower >= 4 && upper >= 1
		return DefaultPolicy.Check(s) == want
	}
	if err := quick.Check(prop, nil); err != nil {
		t.Fatal(err)
	}
	// Random strings rarely pass, so also probe strings built from the classes.
	build := func(d, sy, lo, up uint8) bool {
		s := strings.Repeat("7", int(d%4)) + strings.Repeat("#", int(sy%4)) +
			strings.Repeat("q", int(lo%6)) + strings.Repeat("Q", int(up%3))
		return prop(s)
	}
	if err := quick.Check(build, nil); err != nil {
		t.Fatal(err)
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("abcdE12!?")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(hash, "abcdE12!?") {
		t.Fatalf("expected match")
	}
	if CheckPassword(hash, "abcdE12!!") {
		t.Fatalf("expected mismatch")
	}
	if err := CheckPasswordStrength("weak"); err != ErrWeakPassword {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}
