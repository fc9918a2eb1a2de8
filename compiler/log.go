package compiler

import "go.uber.org/zap"

// logger receives the compiler's "log a warning" side channel for unknown
// operators and invalid operands (§4.3/§7). The compiler stays otherwise
// pure; callers that care about these diagnostics call SetLogger once at
// startup, same as any other package-level zap sink in this codebase.
var logger = zap.NewNop()

// SetLogger installs the *zap.Logger used for compiler warnings.
func SetLogger(l *zap.Logger) {
	if l != nil {
		logger = l
	}
}

func warnUnknownOperator(operator string) {
	logger.Warn("compiler: unknown operator", zap.String("operator", operator))
}

func warnInvalidOperand(operator, reason string) {
	logger.Warn("compiler: invalid operand", zap.String("operator", operator), zap.String("reason", reason))
}
