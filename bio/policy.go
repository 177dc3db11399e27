package bio

import (
	"fmt"

	"github.com/mit-pdos/go-kpool/common"
)

// An ExhaustionPolicy decides what happens when a block is requested while
// every buffer in the cache is referenced. Exhausted runs with no cache lock
// held. If it returns, the lookup starts over, so a policy that returns must
// have given other holders a chance to release.
type ExhaustionPolicy interface {
	Exhausted(dev common.Dev, blkno common.Bnum)
}

// FailFast treats exhaustion as fatal. The cache has a fixed number of
// buffers, and running out means callers hold more blocks at once than the
// system was sized for.
type FailFast struct{}

func (FailFast) Exhausted(dev common.Dev, blkno common.Bnum) {
	panic(fmt.Errorf("bget: no buffers for %d/%d", dev, blkno))
}
