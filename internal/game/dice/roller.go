package dice

import "go.uber.org/zap"

// Roll evaluates expr with src.
//
// Precondition: expr must come from Parse; src must be non-nil.
// Postcondition: expr.Min() <= result.Total() <= expr.Max().
func Roll(expr Expression, src Source) Result {
	rolled := make([]int, expr.Count)
	for i := range rolled {
		rolled[i] = src.Intn(expr.Sides) + 1
	}
	return Result{Expression: expr.Raw, Dice: rolled, Modifier: expr.Modifier}
}

// Roller rolls a fixed expression and logs every roll at debug level.
type Roller struct {
	expr   Expression
	logger *zap.Logger
}

// NewRoller returns a Roller for expr.
//
// Precondition: logger must be non-nil.
func NewRoller(expr Expression, logger *zap.Logger) *Roller {
	return &Roller{expr: expr, logger: logger}
}

// Expression returns the expression this Roller rolls.
func (r *Roller) Expression() Expression { return r.expr }

// Roll rolls the expression with src and logs the outcome under label.
func (r *Roller) Roll(src Source, label string) Result {
	res := Roll(r.expr, src)
	r.logger.Debug("dice roll",
		zap.String("label", label),
		zap.String("expression", res.Expression),
		zap.Ints("dice", res.Dice),
		zap.Int("modifier", res.Modifier),
		zap.Int("total", res.Total()),
	)
	return res
}
