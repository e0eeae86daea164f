package eval

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"sync"
)

const defaultWeightsName = "grail.nn"

var once sync.Once
var weights *Weights
var loadErr error

// NewDefaultEvaluationService loads the bundled network from the usual
// locations. The weights are shared between services, so repeated calls
// after a UseNNUE toggle are cheap.
func NewDefaultEvaluationService() (*EvaluationService, error) {
	once.Do(func() {
		var paths = []string{
			"./" + defaultWeightsName,
			"~/chess/" + defaultWeightsName,
		}
		for _, path := range paths {
			var w, err = loadFileWeights(mapPath(path))
			if err == nil {
				weights = w
				return
			}
			loadErr = err
		}
	})
	if weights == nil {
		return nil, loadErr
	}
	return NewEvaluationService(weights), nil
}

// NewFileEvaluationService loads the network from an explicit path. No
// fallback: a bad path is the caller's error to report.
func NewFileEvaluationService(path string) (*EvaluationService, error) {
	var w, err = loadFileWeights(mapPath(path))
	if err != nil {
		return nil, err
	}
	return NewEvaluationService(w), nil
}

func loadFileWeights(path string) (*Weights, error) {
	var f, err = os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadWeights(f)
}

func mapPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		curUser, err := user.Current()
		if err != nil {
			return path
		}
		return filepath.Join(curUser.HomeDir, strings.TrimPrefix(path, "~/"))
	}
	if strings.HasPrefix(path, "./") {
		var exePath, err = os.Executable()
		if err != nil {
			return path
		}
		return filepath.Join(filepath.Dir(exePath), strings.TrimPrefix(path, "./"))
	}
	return path
}
