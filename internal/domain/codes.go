package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Business code formats.
var (
	// CandidateCodePattern matches generated candidate codes, e.g. CAN-000123.
	CandidateCodePattern = regexp.MustCompile(`^[A-Z]{3}-\d{6}$`)

	// RequestCodePattern matches request codes, e.g. C001-A or C001-AB.
	RequestCodePattern = regexp.MustCompile(`^[A-Z0-9]+-[A-Z]+$`)

	// ClientCodePattern matches client codes after upper-casing.
	ClientCodePattern = regexp.MustCompile(`^[A-Z0-9]+$`)
)

// CandidateCodePrefix is the three-letter prefix of generated candidate codes.
const CandidateCodePrefix = "CAN"

// NationalIDLength is the number of digits in a normalized national ID.
const NationalIDLength = 11

// EncodeSequence maps a 1-based ordinal to bijective base-26 letters:
// 1→A, 26→Z, 27→AA, 52→AZ, 53→BA, 702→ZZ, 703→AAA.
func EncodeSequence(n int64) (string, error) {
	if n < 1 {
		return "", fmt.Errorf("sequence ordinal must be >= 1, got %d", n)
	}
	var buf []byte
	for n > 0 {
		n--
		buf = append(buf, byte('A'+n%26))
		n /= 26
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf), nil
}

// RequestCode builds the business code of a client's nth request.
func RequestCode(clientCode string, n int64) (string, error) {
	letters, err := EncodeSequence(n)
	if err != nil {
		return "", err
	}
	return clientCode + "-" + letters, nil
}

// CandidateCode builds the code for the nth candidate ever registered.
func CandidateCode(seq int64) (string, error) {
	if seq < 1 || seq > 999999 {
		return "", fmt.Errorf("candidate sequence out of range: %d", seq)
	}
	return fmt.Sprintf("%s-%06d", CandidateCodePrefix, seq), nil
}

// NormalizeNationalID strips separators from a national ID and requires
// exactly NationalIDLength digits to remain.
func NormalizeNationalID(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == ' ' || r == '.':
		default:
			return "", NewValidationError("national_id", fmt.Sprintf("national ID contains invalid character %q", r))
		}
	}
	id := b.String()
	if len(id) != NationalIDLength {
		return "", NewValidationError("national_id",
			fmt.Sprintf("national ID must have %d digits, got %d", NationalIDLength, len(id)))
	}
	return id, nil
}

// NormalizeClientCode upper-cases and validates a client code.
func NormalizeClientCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if !ClientCodePattern.MatchString(code) {
		return "", NewValidationError("code", fmt.Sprintf("client code %q must be letters and digits only", raw))
	}
	return code, nil
}
