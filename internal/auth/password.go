package auth

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const symbols = "-#!$@£%^&*()_+|~=`{}[]:\";'<>?,./\\ "

type PasswordPolicy struct {
	MinLength int
	MinDigits int
	MinSymbol int
	MinLower  int
	MinUpper  int
}

var DefaultPolicy = PasswordPolicy{MinLength: 8, MinDigits: 2, MinSymbol: 2, MinLower: 4, MinUpper: 1}

// Check counts runes, so multi-byte symbols such as '£' count once. Only
// ASCII letters and digits count towards their classes.
func (p PasswordPolicy) Check(password string) bool {
	var length, digits, syms, lower, upper int
	for _, r := range password {
		length++
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r >= 'a' && r <= 'z':
			lower++
		case r >= 'A' && r <= 'Z':
			upper++
		case strings.ContainsRune(symbols, r):
			syms++
		}
	}
	return length >= p.MinLength &&
		digits >= p.MinDigits &&
		syms >= p.MinSymbol &&
		lower >= p.MinLower &&
		upper >= p.MinUpper
}

func CheckPasswordStrength(password string) error {
	if !DefaultPolicy.Check(password) {
		return ErrWeakPassword
	}
	return nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
