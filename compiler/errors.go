package compiler

import "errors"

// ErrUnsupportedWhere is returned when a query document contains $where:
// the one operator the compiler refuses to touch at all (§4.3/§7).
var ErrUnsupportedWhere = errors.New("compiler: $where is not supported")

// InvalidOperandError reports a structurally malformed operand that the
// compiler could not even attempt to degrade into FALSE (e.g. $and given a
// non-array). Operands the spec explicitly degrades per-operator (bad
// $mod/$size/$all/$type shapes) do not raise this — they emit FALSE and
// log a warning instead, per §4.3/§7's InvalidOperand policy.
type InvalidOperandError struct {
	Operator string
	Reason   string
}

func (e *InvalidOperandError) Error() string {
	return "compiler: invalid operand for " + e.Operator + ": " + e.Reason
}

// EmptyDestructiveError guards remove(empty) / updateOne|Many(empty filter)
// per §7: these must never reach the database.
type EmptyDestructiveError struct {
	Operation string
}

func (e *EmptyDestructiveError) Error() string {
	return "compiler: refusing " + e.Operation + " with an empty filter"
}
