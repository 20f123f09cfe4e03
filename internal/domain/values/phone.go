package values

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// PhoneNumber is a validated North American phone number value object.
// It is stored in canonical digit form: 11 digits with a leading "1"
// (e.g. "15555550100"). That form is the unit of compliance lookups
// and the key used for rate-limit and suppression state.
type PhoneNumber struct {
	digits string
}

// NewPhoneNumber creates a PhoneNumber from any phone-like input.
// Formatting characters are stripped; bare 10-digit national numbers
// are coerced to the leading-"1" 11-digit form.
func NewPhoneNumber(raw string) (PhoneNumber, error) {
	if raw == "" {
		return PhoneNumber{}, fmt.Errorf("phone number cannot be empty")
	}

	digits := stripNonDigits(raw)

	switch {
	case len(digits) == 10:
		digits = "1" + digits
	case len(digits) == 11 && strings.HasPrefix(digits, "1"):
		// already canonical
	default:
		return PhoneNumber{}, fmt.Errorf("invalid phone number format: %s", raw)
	}

	// NANP numbers never have a 0 or 1 area code or exchange prefix.
	if digits[1] == '0' || digits[1] == '1' || digits[4] == '0' || digits[4] == '1' {
		return PhoneNumber{}, fmt.Errorf("implausible national number: %s", raw)
	}

	return PhoneNumber{digits: digits}, nil
}

// MustNewPhoneNumber creates a PhoneNumber and panics on error (for tests).
func MustNewPhoneNumber(raw string) PhoneNumber {
	p, err := NewPhoneNumber(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// Normalize returns the canonical digit form of a phone-like string
// without constructing a value object. Inputs that cannot be coerced
// are returned stripped of non-digits, so callers can still use the
// result as an opaque lookup key that will simply never match.
func Normalize(raw string) string {
	digits := stripNonDigits(raw)
	if len(digits) == 10 {
		return "1" + digits
	}
	return digits
}

// String returns the canonical digit form (e.g. "15555550100").
func (p PhoneNumber) String() string {
	return p.digits
}

// E164 returns the number in E.164 format (e.g. "+15555550100").
func (p PhoneNumber) E164() string {
	if p.digits == "" {
		return ""
	}
	return "+" + p.digits
}

// National returns the 10-digit national number without country code.
func (p PhoneNumber) National() string {
	if len(p.digits) != 11 {
		return p.digits
	}
	return p.digits[1:]
}

// AreaCode returns the 3-digit area code.
func (p PhoneNumber) AreaCode() string {
	national := p.National()
	if len(national) != 10 {
		return ""
	}
	return national[:3]
}

// IsEmpty reports whether the value is the zero PhoneNumber.
func (p PhoneNumber) IsEmpty() bool {
	return p.digits == ""
}

// Equal reports whether two PhoneNumber values are the same number.
func (p PhoneNumber) Equal(other PhoneNumber) bool {
	return p.digits == other.digits
}

// FormatUS returns the number as (XXX) XXX-XXXX for display.
func (p PhoneNumber) FormatUS() string {
	national := p.National()
	if len(national) != 10 {
		return p.digits
	}
	return fmt.Sprintf("(%s) %s-%s", national[:3], national[3:6], national[6:])
}

// MarshalJSON implements JSON marshaling.
func (p PhoneNumber) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.digits)
}

// UnmarshalJSON implements JSON unmarshaling.
func (p *PhoneNumber) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	phone, err := NewPhoneNumber(raw)
	if err != nil {
		return err
	}

	*p = phone
	return nil
}

// Value implements driver.Valuer for database storage.
func (p PhoneNumber) Value() (driver.Value, error) {
	if p.digits == "" {
		return nil, nil
	}
	return p.digits, nil
}

// Scan implements sql.Scanner for database retrieval.
func (p *PhoneNumber) Scan(value interface{}) error {
	if value == nil {
		*p = PhoneNumber{}
		return nil
	}

	var str string
	switch v := value.(type) {
	case string:
		str = v
	case []byte:
		str = string(v)
	default:
		return fmt.Errorf("cannot scan %T into PhoneNumber", value)
	}

	if str == "" {
		*p = PhoneNumber{}
		return nil
	}

	phone, err := NewPhoneNumber(str)
	if err != nil {
		return err
	}

	*p = phone
	return nil
}

func stripNonDigits(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
