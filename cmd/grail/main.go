package main

import (
	"flag"
	"log"
	"os"
	"runtime"

	"github.com/jorgenhanssen/grail/internal/evalbuilder"
	"github.com/jorgenhanssen/grail/pkg/engine"
	"github.com/jorgenhanssen/grail/pkg/uci"
)

const (
	name   = "Grail"
	author = "Jorgen Hanssen"
)

var (
	versionName = "dev"
	buildDate   = "(null)"
	gitRevision = "(null)"
	flgEval     string
	flgNNUE     string
)

func main() {
	flag.StringVar(&flgEval, "eval", "", "specifies evaluation function")
	flag.StringVar(&flgNNUE, "nnue", "", "path to the network weights file")
	flag.Parse()

	var logger = log.New(os.Stderr, "", log.LstdFlags|log.Lshortfile)

	logger.Println(name,
		"VersionName", versionName,
		"BuildDate", buildDate,
		"GitRevision", gitRevision,
		"RuntimeVersion", runtime.Version(),
		"GOARCH", runtime.GOARCH,
		"GOOS", runtime.GOOS,
		"NumCPU", runtime.NumCPU(),
	)

	var useNNUE = true
	var buildEval = func() interface{} {
		var key = flgEval
		if key == "" && !useNNUE {
			key = "hce"
		}
		return evalbuilder.Get(key, flgNNUE)()
	}

	var eng = engine.NewEngine(buildEval)
	eng.Hash = 1024

	var protocol = uci.New(name, author, versionName, eng,
		[]uci.Option{
			&uci.IntOption{Name: "Hash", Min: 1, Max: 1 << 16, Value: &eng.Hash},
			&uci.IntOption{Name: "Threads", Min: 1, Max: 1, Value: &eng.Threads},
			&uci.BoolOption{Name: "UseNNUE", Value: &useNNUE,
				OnChange: func() error {
					eng.SetEvalBuilder(buildEval)
					return nil
				}},
		},
	)
	protocol.Run()
}
