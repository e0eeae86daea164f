package engine

import (
	"context"
	"errors"
	"runtime"
	"time"

	. "github.com/jorgenhanssen/grail/pkg/common"
)

var errSearchTimeout = errors.New("search timeout")

// Engine owns the transposition table, the history tables and the search
// stack. The search itself runs on the caller's goroutine and is
// single-threaded; cancellation arrives through the context passed to
// Search.
type Engine struct {
	Hash              int
	Threads           int
	ProgressMinNodes  int
	evalBuilder       func() interface{}
	timeManager       *timeManager
	transTable        *transTable
	lateMoveReduction func(depth, moveNumber int) int
	historyKeys       map[uint64]int
	thread            thread
	progress          func(SearchInfo)
	mainLine          mainLine
	start             time.Time
}

type thread struct {
	engine       *Engine
	history      historyTable
	evaluator    IUpdatableEvaluator
	nodes        int64
	selDepth     int
	nmpMinHeight int
	stack        [stackSize]struct {
		position         Position
		moveList         [MaxMoves]OrderedMove
		quietsSearched   [MaxMoves]Move
		capturesSearched [64]Move
		pv               pv
		staticEval       int
		killer1          Move
		killer2          Move
	}
}

type pv struct {
	items [stackSize]Move
	size  int
}

type mainLine struct {
	moves    []Move
	score    int
	depth    int
	selDepth int
}

type IEvaluator interface {
	Evaluate(p *Position) int
}

type IUpdatableEvaluator interface {
	Init(p *Position)
	MakeMove(p *Position, m Move)
	UnmakeMove()
	EvaluateQuick(p *Position) int
}

func NewEngine(evalBuilder func() interface{}) *Engine {
	return &Engine{
		Hash:             16,
		Threads:          1,
		ProgressMinNodes: 200000,
		evalBuilder:      evalBuilder,
	}
}

// SetEvalBuilder swaps the evaluator backend. Takes effect on the next
// Prepare.
func (e *Engine) SetEvalBuilder(evalBuilder func() interface{}) {
	e.evalBuilder = evalBuilder
	e.thread.evaluator = nil
}

func (e *Engine) Prepare() {
	if e.transTable == nil || e.transTable.Size() != e.Hash {
		if e.transTable != nil {
			e.transTable = nil
			runtime.GC()
		}
		e.transTable = newTransTable(e.Hash)
	}
	if e.lateMoveReduction == nil {
		e.lateMoveReduction = initLmr()
	}
	if e.thread.evaluator == nil {
		e.thread.engine = e
		e.thread.evaluator = e.buildEvaluator()
	}
}

func (e *Engine) Search(ctx context.Context, searchParams SearchParams) SearchInfo {
	e.start = time.Now()
	e.Prepare()
	var p = &searchParams.Positions[len(searchParams.Positions)-1]
	e.timeManager = newTimeManager(ctx, e.start, searchParams.Limits, p)
	defer e.timeManager.Close()
	e.transTable.IncGeneration()
	e.historyKeys = getHistoryKeys(searchParams.Positions)
	e.progress = searchParams.Progress
	e.mainLine = mainLine{}

	var t = &e.thread
	t.nodes = 0
	t.selDepth = 0
	t.nmpMinHeight = -1
	t.stack[0].position = *p
	for i := range t.stack {
		t.stack[i].killer1 = MoveEmpty
		t.stack[i].killer2 = MoveEmpty
	}

	if len(p.GenerateLegalMoves()) == 0 {
		return SearchInfo{Time: time.Since(e.start).Milliseconds()}
	}
	t.iterateDeepening()
	return e.currentSearchResult()
}

func getHistoryKeys(positions []Position) map[uint64]int {
	var result = make(map[uint64]int)
	for i := len(positions) - 1; i >= 0; i-- {
		var p = &positions[i]
		result[p.Key]++
		if p.Rule50 == 0 {
			break
		}
	}
	return result
}

// Clear resets state between games: the table is emptied and history
// preferences are halved rather than dropped.
func (e *Engine) Clear() {
	if e.transTable != nil {
		e.transTable.Clear()
	}
	e.thread.history.age()
}

func (e *Engine) currentSearchResult() SearchInfo {
	var si = SearchInfo{
		Depth:    e.mainLine.depth,
		SelDepth: e.mainLine.selDepth,
		MainLine: e.mainLine.moves,
		Score:    newUciScore(e.mainLine.score),
		Nodes:    e.thread.nodes,
		Time:     time.Since(e.start).Milliseconds(),
	}
	if e.transTable != nil {
		si.Hashfull = e.transTable.Hashfull()
	}
	return si
}

func (e *Engine) onIterationComplete(t *thread, depth, score int) {
	const height = 0
	e.mainLine = mainLine{
		depth:    depth,
		selDepth: t.selDepth,
		score:    score,
		moves:    t.stack[height].pv.toSlice(),
	}
	e.timeManager.OnIterationComplete(e.mainLine)
	if e.progress != nil && t.nodes >= int64(e.ProgressMinNodes) {
		e.progress(e.currentSearchResult())
	}
}

func (t *thread) clearPV(height int) {
	t.stack[height].pv.clear()
}

func (t *thread) assignPV(height int, move Move) {
	if height+1 < stackSize {
		t.stack[height].pv.assign(move, &t.stack[height+1].pv)
	}
}

func (pv *pv) clear() {
	pv.size = 0
}

func (pv *pv) assign(m Move, child *pv) {
	pv.size = 1
	pv.items[0] = m
	if child.size > 0 {
		pv.size += child.size
		copy(pv.items[1:], child.items[:child.size])
	}
}

func (pv *pv) toSlice() []Move {
	var result = make([]Move, pv.size)
	copy(result, pv.items[:pv.size])
	return result
}

type EvaluatorAdapter struct {
	evaluator IEvaluator
}

func (e *EvaluatorAdapter) Init(p *Position) {
}

func (e *EvaluatorAdapter) MakeMove(p *Position, m Move) {
}

func (e *EvaluatorAdapter) UnmakeMove() {
}

func (e *EvaluatorAdapter) EvaluateQuick(p *Position) int {
	return e.evaluator.Evaluate(p)
}

func (e *Engine) buildEvaluator() IUpdatableEvaluator {
	var evaluationService = e.evalBuilder()
	if ue, ok := evaluationService.(IUpdatableEvaluator); ok {
		return ue
	}
	if ev, ok := evaluationService.(IEvaluator); ok {
		return &EvaluatorAdapter{evaluator: ev}
	}
	panic(errors.New("bad eval builder"))
}
