package address

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Draft is the structured delivery address a customer edits.
type Draft struct {
	House    string `json:"house" validate:"max=200"`
	Location string `json:"location" validate:"max=300"`
	Landmark string `json:"landmark" validate:"max=200"`
}

// Variant tells how a stored profile address was encoded.
type Variant int

const (
	VariantEmpty Variant = iota
	VariantStructured
	// VariantLegacy is a bare string from profiles saved before addresses
	// were structured. It is kept whole in Location.
	VariantLegacy
)

func (v Variant) String() string {
	switch v {
	case VariantStructured:
		return "structured"
	case VariantLegacy:
		return "legacy"
	default:
		return "empty"
	}
}

// Parse normalizes a stored profile address. JSON objects (also when stored
// as a JSON string literal) decode to VariantStructured; anything else that is
// not blank is a legacy free-form address.
func Parse(raw string) (Draft, Variant) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Draft{}, VariantEmpty
	}

	if strings.HasPrefix(trimmed, `"`) {
		if unquoted, err := strconv.Unquote(trimmed); err == nil {
			return Parse(unquoted)
		}
	}

	if strings.HasPrefix(trimmed, "{") {
		var d Draft
		if err := json.Unmarshal([]byte(trimmed), &d); err == nil {
			d = d.normalized()
			if d.IsEmpty() {
				return Draft{}, VariantEmpty
			}
			return d, VariantStructured
		}
	}

	return Draft{Location: trimmed}, VariantLegacy
}

// ParsePtr is Parse for nullable profile columns.
func ParsePtr(raw *string) (Draft, Variant) {
	if raw == nil {
		return Draft{}, VariantEmpty
	}
	return Parse(*raw)
}

// Format joins the non-empty parts with ", ".
func (d Draft) Format() string {
	parts := make([]string, 0, 3)
	for _, part := range []string{d.House, d.Location, d.Landmark} {
		if p := strings.TrimSpace(part); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func (d Draft) IsEmpty() bool {
	n := d.normalized()
	return n.House == "" && n.Location == "" && n.Landmark == ""
}

// Encode returns the JSON form stored on the profile.
func Encode(d Draft) (string, error) {
	raw, err := json.Marshal(d.normalized())
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (d Draft) normalized() Draft {
	return Draft{
		House:    strings.TrimSpace(d.House),
		Location: strings.TrimSpace(d.Location),
		Landmark: strings.TrimSpace(d.Landmark),
	}
}
