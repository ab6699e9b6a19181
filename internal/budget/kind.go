package budget

import (
	"strings"

	"github.com/thisis/placesguard/internal/errors"
)

// Kind names a paid provider resource with its own daily ceiling.
type Kind string

const (
	Photos       Kind = "photos"
	Autocomplete Kind = "autocomplete"
	Details      Kind = "details"
	Nearby       Kind = "nearby"
)

// Kinds lists every metered resource in report order.
var Kinds = []Kind{Photos, Autocomplete, Details, Nearby}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", errors.NewInvalidRequest("kind must be one of: photos, autocomplete, details, nearby")
	}
	return k, nil
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

func (k Kind) key() string {
	return "budget/" + string(k)
}

// Verdict is the outcome of an admission check. Only Allowed permits a paid call.
type Verdict string

const (
	Allowed                Verdict = "allowed"
	BudgetExceeded         Verdict = "budget_exceeded"
	KillSwitchActive       Verdict = "kill_switch_active"
	PersistenceUnavailable Verdict = "persistence_unavailable"
)
