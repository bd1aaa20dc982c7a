package feed

import (
	"context"

	"simtrade/internal/schema"
)

// Source produces ticks until it is exhausted or ctx is done.
//
// Run returns nil when the source is exhausted and ctx.Err() when it was
// interrupted. Any other error means the source could not be read.
type Source interface {
	Run(ctx context.Context, emit schema.TickHandler) error
}

func subscription(instruments []string) map[string]struct{} {
	if len(instruments) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(instruments))
	for _, instr := range instruments {
		set[instr] = struct{}{}
	}
	return set
}
