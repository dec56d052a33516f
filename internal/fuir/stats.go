package fuir

import (
	"context"
	"errors"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Stats summarizes an IR.
type Stats struct {
	Clazzes   int
	Sites     int
	Refs      int
	Choices   int
	WithCode  int
	MaxCode   int // самый длинный блок кода
	ByKind    map[ClazzKind]int
	BySite    map[ExprKind]int
	Instances map[LifeTime]int
}

// CollectStats counts the clazzes and sites of ir. The scan is concurrent, so
// ir must be a frozen *Generated or a library.
func CollectStats(ctx context.Context, ir IR) (Stats, error) {
	if fz, ok := ir.(interface{ Frozen() bool }); ok && !fz.Frozen() {
		return Stats{}, errors.New("fuir: IR is not frozen")
	}
	st := Stats{
		Clazzes:   int(ir.LastClazz()-ir.FirstClazz()) + 1,
		Sites:     int(ir.SiteEnd() - ir.FirstSite()),
		ByKind:    make(map[ClazzKind]int),
		BySite:    make(map[ExprKind]int),
		Instances: make(map[LifeTime]int),
	}
	workers := max(runtime.GOMAXPROCS(0), 1)

	sites := make([]map[ExprKind]int, workers)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for c := ir.FirstClazz(); c <= ir.LastClazz(); c++ {
			if err := gctx.Err(); err != nil {
				return err
			}
			st.ByKind[ir.ClazzKind(c)]++
			st.Instances[ir.LifeTime(c)]++
			if ir.ClazzIsRef(c) {
				st.Refs++
			}
			if ir.ClazzIsChoice(c) {
				st.Choices++
			}
			if ir.ClazzNeedsCode(c) {
				st.WithCode++
				st.MaxCode = max(st.MaxCode, CodeSize(ir, ir.ClazzCode(c)))
			}
		}
		return nil
	})
	chunk := (st.Sites + workers - 1) / workers
	for w := range workers {
		lo := ir.FirstSite() + SiteID(w*chunk) // #nosec G115 -- bounded by Sites
		hi := min(lo+SiteID(chunk), ir.SiteEnd())
		counts := make(map[ExprKind]int)
		sites[w] = counts
		g.Go(func() error {
			for s := lo; s < hi; s++ {
				if (s-lo)%1024 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				if ir.WithinCode(s) {
					counts[ir.CodeAt(s)]++
				} else {
					counts[ExprNone]++
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	for _, counts := range sites {
		for k, n := range counts {
			st.BySite[k] += n
		}
	}
	return st, nil
}
