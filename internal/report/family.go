package report

import (
	"fmt"
	"strconv"
	"strings"
)

// CodeFamily groups HTTP response codes by their leading digit.
type CodeFamily int

const (
	Family1XX CodeFamily = iota + 1
	Family2XX
	Family3XX
	Family4XX
	Family5XX
)

// StartingDigit returns the leading digit shared by all codes in the family.
func (f CodeFamily) StartingDigit() string {
	return strconv.Itoa(int(f))
}

func (f CodeFamily) String() string {
	return f.StartingDigit() + "XX"
}

// Matches reports whether code belongs to the family.
func (f CodeFamily) Matches(code int) bool {
	got, err := FamilyOf(code)
	return err == nil && got == f
}

// FamilyOf returns the family of code.
func FamilyOf(code int) (CodeFamily, error) {
	if code < 100 || code > 599 {
		return 0, fmt.Errorf("code %d has no family", code)
	}
	return CodeFamily(code / 100), nil
}

// ParseFamily accepts "2XX", "2xx" or "2".
func ParseFamily(s string) (CodeFamily, error) {
	s = strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(s)), "XX")
	d, err := strconv.Atoi(s)
	if err != nil || d < 1 || d > 5 {
		return 0, fmt.Errorf("unknown code family %q", s)
	}
	return CodeFamily(d), nil
}
