// Package mem provides the physical memory the page allocator manages.
//
// An Arena is an anonymous, page-aligned mapping standing in for physical
// RAM. It is addressed by physical address (PA), starting at a base such as
// common.KERNBASE; Page translates a page-aligned PA into the bytes backing
// it, the way a kernel's direct map would.
package mem

import (
	"fmt"

	"github.com/lpabon/godbc"
	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-kpool/common"
	"github.com/mit-pdos/go-kpool/util"
)

// PA is a physical address. The zero PA is never inside an arena.
type PA uint64

type Arena struct {
	base PA
	end  PA
	mem  []byte
}

// MkArena maps size bytes (rounded up to whole pages) of memory at physical
// address base.
func MkArena(base PA, size uint64) (*Arena, error) {
	godbc.Require(base != 0, "arena base must be non-zero")
	godbc.Require(uint64(base)%common.PGSIZE == 0, "arena base must be page aligned")
	sz := util.PgRoundUp(size, common.PGSIZE)
	if sz == 0 {
		return nil, fmt.Errorf("mkarena: empty arena")
	}
	b, err := unix.Mmap(-1, 0, int(sz), unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mkarena: mmap %d bytes: %w", sz, err)
	}
	util.DPrintf(1, "mkarena: [%#x, %#x)\n", uint64(base), uint64(base)+sz)
	return &Arena{base: base, end: base + PA(sz), mem: b}, nil
}

func (a *Arena) Base() PA {
	return a.base
}

// End is the first physical address past the arena.
func (a *Arena) End() PA {
	return a.end
}

func (a *Arena) Contains(pa PA) bool {
	return pa >= a.base && pa < a.end
}

// Page returns the bytes of the page at pa.
func (a *Arena) Page(pa PA) []byte {
	if uint64(pa)%common.PGSIZE != 0 || !a.Contains(pa) {
		panic(fmt.Errorf("mem: bad page %#x", uint64(pa)))
	}
	off := uint64(pa - a.base)
	return a.mem[off : off+common.PGSIZE : off+common.PGSIZE]
}

// NumPages reports how many whole pages lie in [start, end).
func NumPages(start PA, end PA) uint64 {
	s := util.PgRoundUp(uint64(start), common.PGSIZE)
	if s >= uint64(end) {
		return 0
	}
	return (uint64(end) - s) / common.PGSIZE
}

// Close unmaps the arena. Pages obtained from it must no longer be used.
func (a *Arena) Close() error {
	err := unix.Munmap(a.mem)
	if err != nil {
		return fmt.Errorf("mem: munmap: %w", err)
	}
	a.mem = nil
	return nil
}
