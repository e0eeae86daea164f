package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jorgenhanssen/grail/pkg/common"
)

func main() {
	var fen string
	var depth int
	flag.StringVar(&fen, "fen", common.InitialPositionFen, "position to count from")
	flag.IntVar(&depth, "depth", 6, "maximum depth")
	flag.Parse()

	var p, err = common.NewPositionFromFEN(fen)
	if err != nil {
		log.Fatal(err)
	}

	for d := 1; d <= depth; d++ {
		var start = time.Now()
		var nodes, err = perftRoot(context.Background(), &p, d)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("perft %2d %12d %v\n", d, nodes, time.Since(start).Round(time.Millisecond))
	}
}

// perftRoot splits the root moves across workers, each walking its own
// subtree with a private child stack.
func perftRoot(ctx context.Context, p *common.Position, depth int) (int64, error) {
	var moves = p.GenerateLegalMoves()
	if depth <= 1 {
		return int64(len(moves)), nil
	}

	var total int64
	var index int32 = -1

	var g, _ = errgroup.WithContext(ctx)
	for i := 0; i < runtime.NumCPU(); i++ {
		g.Go(func() error {
			var stack = make([]common.Position, depth)
			for {
				var next = int(atomic.AddInt32(&index, 1))
				if next >= len(moves) {
					return nil
				}
				p.MakeMove(moves[next], &stack[0])
				atomic.AddInt64(&total, perft(stack, depth-1))
			}
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return total, nil
}

func perft(stack []common.Position, depth int) int64 {
	var p = &stack[0]
	var buffer [common.MaxMoves]common.OrderedMove
	var result int64
	for _, om := range p.GenerateMoves(buffer[:]) {
		if p.MakeMove(om.Move, &stack[1]) {
			if depth <= 1 {
				result++
			} else {
				result += perft(stack[1:], depth-1)
			}
		}
	}
	return result
}
