package uci

import (
	"bufio"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/jorgenhanssen/grail/pkg/common"
	"github.com/jorgenhanssen/grail/pkg/engine"
	eval "github.com/jorgenhanssen/grail/pkg/eval/material"
)

func newTestProtocol() *Protocol {
	var eng = engine.NewEngine(func() interface{} {
		return eval.NewEvaluationService()
	})
	eng.Hash = 16
	return New("grail-test", "test", "test", eng, []Option{
		&IntOption{Name: "Hash", Min: 1, Max: 1 << 16, Value: &eng.Hash},
	})
}

func TestSession(t *testing.T) {
	var uci = newTestProtocol()

	var inReader, inWriter = io.Pipe()
	var outReader, outWriter = io.Pipe()
	uci.SetIO(inReader, outWriter)

	var done = make(chan struct{})
	go func() {
		uci.Run()
		close(done)
	}()

	var in = func(s string) {
		if _, err := io.WriteString(inWriter, s+"\n"); err != nil {
			t.Error(err)
		}
	}
	var scanner = bufio.NewScanner(outReader)
	var readUntil = func(prefix string) []string {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
			if strings.HasPrefix(scanner.Text(), prefix) {
				return lines
			}
		}
		t.Fatalf("stream ended waiting for %q", prefix)
		return nil
	}

	in("uci")
	var lines = readUntil("uciok")
	if !strings.HasPrefix(lines[0], "id name") {
		t.Errorf("expected id name, got %q", lines[0])
	}
	var sawOption bool
	for _, line := range lines {
		if strings.HasPrefix(line, "option name Hash type spin") {
			sawOption = true
		}
	}
	if !sawOption {
		t.Error("Hash option not announced")
	}

	in("isready")
	readUntil("readyok")

	in("position startpos moves e2e4 e7e5")
	in("go depth 3")
	lines = readUntil("bestmove")
	var last = lines[len(lines)-1]
	var fields = strings.Fields(last)
	if len(fields) < 2 {
		t.Fatalf("bad bestmove line %q", last)
	}
	var p, _ = common.NewPositionFromFEN(common.InitialPositionFen)
	p, _ = p.MakeMoveLAN("e2e4")
	p, _ = p.MakeMoveLAN("e7e5")
	var legal = false
	for _, m := range p.GenerateLegalMoves() {
		if m.String() == fields[1] {
			legal = true
		}
	}
	if !legal {
		t.Errorf("bestmove %v not legal", fields[1])
	}

	in("quit")
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after quit")
	}
}

func TestStopDuringSearch(t *testing.T) {
	var uci = newTestProtocol()

	var inReader, inWriter = io.Pipe()
	var outReader, outWriter = io.Pipe()
	uci.SetIO(inReader, outWriter)

	var done = make(chan struct{})
	go func() {
		uci.Run()
		close(done)
	}()

	go io.WriteString(inWriter, "position startpos\ngo infinite\n")

	var scanner = bufio.NewScanner(outReader)
	var stopped = make(chan struct{})
	go func() {
		time.Sleep(100 * time.Millisecond)
		io.WriteString(inWriter, "stop\n")
		close(stopped)
	}()

	var sawBestmove = false
	var deadline = time.After(10 * time.Second)
	var scanDone = make(chan bool)
	go func() {
		for scanner.Scan() {
			if strings.HasPrefix(scanner.Text(), "bestmove") {
				scanDone <- true
				return
			}
		}
		scanDone <- false
	}()
	select {
	case sawBestmove = <-scanDone:
	case <-deadline:
	}
	if !sawBestmove {
		t.Fatal("no bestmove after stop")
	}

	<-stopped
	io.WriteString(inWriter, "quit\n")
	go io.Copy(io.Discard, outReader)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after quit")
	}
}

func TestPositionCommand(t *testing.T) {
	var uci = newTestProtocol()

	var tests = []struct {
		args string
		fen  string
	}{
		{"startpos", common.InitialPositionFen},
		{"startpos moves e2e4", "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1"},
		{"fen 8/8/4k3/8/4K3/8/4P3/8 w - - 0 1", "8/8/4k3/8/4K3/8/4P3/8 w - - 0 1"},
		{"fen 8/8/4k3/8/4K3/8/4P3/8 w - - 0 1 moves e2e3", "8/8/4k3/8/4K3/4P3/8/8 b - - 0 1"},
	}
	for _, test := range tests {
		if err := uci.positionCommand(strings.Fields(test.args)); err != nil {
			t.Errorf("%q: %v", test.args, err)
			continue
		}
		var want, err = common.NewPositionFromFEN(test.fen)
		if err != nil {
			t.Fatal(err)
		}
		var got = uci.positions[len(uci.positions)-1]
		if got.Key != want.Key {
			t.Errorf("%q: got %v, want %v", test.args, got.String(), want.String())
		}
	}

	if err := uci.positionCommand([]string{"startpos", "moves", "e2e5"}); err == nil {
		t.Error("illegal move accepted")
	}
	if err := uci.positionCommand(nil); err == nil {
		t.Error("empty arguments accepted")
	}
}

func TestParseLimits(t *testing.T) {
	var limits = parseLimits(strings.Fields(
		"wtime 60000 btime 55000 winc 1000 binc 1000 movestogo 30"))
	if limits.WhiteTime != 60000 || limits.BlackTime != 55000 ||
		limits.WhiteIncrement != 1000 || limits.BlackIncrement != 1000 ||
		limits.MovesToGo != 30 {
		t.Errorf("bad limits %+v", limits)
	}

	limits = parseLimits(strings.Fields("depth 12"))
	if limits.Depth != 12 {
		t.Errorf("bad depth %+v", limits)
	}

	limits = parseLimits(strings.Fields("infinite"))
	if !limits.Infinite {
		t.Errorf("bad infinite %+v", limits)
	}
}

func TestSearchInfoToUci(t *testing.T) {
	var si = common.SearchInfo{
		Score:    common.UciScore{Centipawns: 33},
		Depth:    10,
		SelDepth: 14,
		Nodes:    100000,
		Time:     1000,
		Hashfull: 17,
		MainLine: []common.Move{},
	}
	var p, _ = common.NewPositionFromFEN(common.InitialPositionFen)
	for _, m := range p.GenerateLegalMoves() {
		if m.String() == "e2e4" {
			si.MainLine = append(si.MainLine, m)
		}
	}
	var s = searchInfoToUci(si)
	for _, want := range []string{
		"depth 10", "seldepth 14", "multipv 1", "score cp 33",
		"nodes 100000", "time 1000", "hashfull 17", "pv e2e4",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("%q missing from %q", want, s)
		}
	}

	si.Score = common.UciScore{Mate: -3}
	s = searchInfoToUci(si)
	if !strings.Contains(s, "score mate -3") {
		t.Errorf("mate score missing from %q", s)
	}
}

func TestOptions(t *testing.T) {
	var hash = 16
	var intOpt = &IntOption{Name: "Hash", Min: 1, Max: 128, Value: &hash}
	if err := intOpt.Set("64"); err != nil || hash != 64 {
		t.Errorf("set failed: %v %v", err, hash)
	}
	if err := intOpt.Set("1024"); err == nil {
		t.Error("out of range value accepted")
	}
	if err := intOpt.Set("abc"); err == nil {
		t.Error("non-numeric value accepted")
	}
	var want = "option name Hash type spin default 64 min 1 max 128"
	if s := intOpt.UciString(); s != want {
		t.Errorf("got %q, want %q", s, want)
	}

	var flag = true
	var fired = false
	var boolOpt = &BoolOption{Name: "UseNNUE", Value: &flag,
		OnChange: func() error {
			fired = true
			return nil
		}}
	if err := boolOpt.Set("false"); err != nil || flag || !fired {
		t.Errorf("bool set failed: %v %v %v", err, flag, fired)
	}
	if s := boolOpt.UciString(); s != "option name UseNNUE type check default false" {
		t.Errorf("bad check option string %q", s)
	}
}

func TestSetOption(t *testing.T) {
	var uci = newTestProtocol()

	if err := uci.setOptionCommand(strings.Fields("name Hash value 64")); err != nil {
		t.Error(err)
	}
	if err := uci.setOptionCommand(strings.Fields("name Nope value 1")); err == nil {
		t.Error("unknown option accepted")
	}
	if err := uci.setOptionCommand(strings.Fields("name Hash")); err == nil {
		t.Error("missing value accepted")
	}
}
