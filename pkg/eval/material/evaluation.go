package eval

import (
	"github.com/jorgenhanssen/grail/pkg/common"
)

// Bare material count, kept around for tooling and for search tests that
// need an evaluator with no positional noise.
type EvaluationService struct{}

func NewEvaluationService() *EvaluationService {
	return &EvaluationService{}
}

func (e *EvaluationService) Evaluate(p *common.Position) int {
	var eval = 100*(common.PopCount(p.Pawns&p.White)-common.PopCount(p.Pawns&p.Black)) +
		325*(common.PopCount(p.Knights&p.White)-common.PopCount(p.Knights&p.Black)) +
		325*(common.PopCount(p.Bishops&p.White)-common.PopCount(p.Bishops&p.Black)) +
		500*(common.PopCount(p.Rooks&p.White)-common.PopCount(p.Rooks&p.Black)) +
		975*(common.PopCount(p.Queens&p.White)-common.PopCount(p.Queens&p.Black))
	if !p.WhiteMove {
		eval = -eval
	}
	return eval
}
