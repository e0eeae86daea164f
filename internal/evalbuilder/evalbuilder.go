package evalbuilder

import (
	"fmt"
	"log"

	hce "github.com/jorgenhanssen/grail/pkg/eval/hce"
	material "github.com/jorgenhanssen/grail/pkg/eval/material"
	nnue "github.com/jorgenhanssen/grail/pkg/eval/nnue"
)

// Get maps an evaluator name to a builder. The empty key is the engine
// default: the network when its weights can be found, otherwise the
// hand-crafted eval. Asking for nnue explicitly makes a missing network
// fatal instead of a fallback. A non-empty nnuePath overrides the usual
// weight file locations.
func Get(key, nnuePath string) func() interface{} {
	var loadNetwork = func() (*nnue.EvaluationService, error) {
		if nnuePath != "" {
			return nnue.NewFileEvaluationService(nnuePath)
		}
		return nnue.NewDefaultEvaluationService()
	}
	return func() interface{} {
		switch key {
		case "":
			var es, err = loadNetwork()
			if err != nil {
				log.Println("nnue weights unavailable, using hce", "err", err)
				return hce.NewEvaluationService()
			}
			return es
		case "hce":
			return hce.NewEvaluationService()
		case "material":
			return material.NewEvaluationService()
		case "nnue":
			var es, err = loadNetwork()
			if err != nil {
				panic(fmt.Errorf("load nnue weights: %w", err))
			}
			return es
		}
		panic(fmt.Errorf("bad eval %v", key))
	}
}
