package domain

// Violation identifies one item that blocked a validation gate.
type Violation struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Message     string `json:"message"`
}

// ValidationOutcome is the answer a validation gate gives to "can this
// proceed?". It is never partially applied: any violation blocks the
// transition that requested the check.
type ValidationOutcome struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations,omitempty"`
}

// OK returns a passing outcome.
func OK() ValidationOutcome {
	return ValidationOutcome{Valid: true}
}

// Blocked returns a failing outcome with the given violations.
func Blocked(violations ...Violation) ValidationOutcome {
	return ValidationOutcome{Valid: false, Violations: violations}
}
