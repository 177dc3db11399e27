// Package kalloc allocates whole physical pages.
//
// Free pages are kept on per-processor freelists so that processors
// allocating and freeing concurrently rarely contend. A processor whose own
// list is empty steals a page from another processor's list.
//
// A free page holds the physical address of the next free page in its first
// word; the rest of it is filled with FREEJUNK. Allocated pages are handed
// out filled with ALLOCJUNK.
//
// Lock order: a caller holds at most one freelist lock at a time. The local
// list is unlocked before stealing starts, and foreign lists are visited in
// ascending processor order, one at a time.
package kalloc

import (
	"fmt"
	"sync"

	"github.com/lpabon/godbc"
	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-kpool/common"
	"github.com/mit-pdos/go-kpool/cpu"
	"github.com/mit-pdos/go-kpool/mem"
	"github.com/mit-pdos/go-kpool/util"
)

const linkSz uint64 = 8

type freelist struct {
	mu    *sync.Mutex
	m     *mem.Arena
	head  mem.PA // 0 if empty
	nfree uint64
}

func mkFreelist(m *mem.Arena) *freelist {
	return &freelist{
		mu: new(sync.Mutex),
		m:  m,
	}
}

func (fl *freelist) next(pa mem.PA) mem.PA {
	dec := marshal.NewDec(fl.m.Page(pa)[:linkSz])
	return mem.PA(dec.GetInt())
}

func (fl *freelist) setNext(pa mem.PA, next mem.PA) {
	enc := marshal.NewEnc(linkSz)
	enc.PutInt(uint64(next))
	copy(fl.m.Page(pa)[:linkSz], enc.Finish())
}

// Assumes caller holds fl.mu
func (fl *freelist) push(pa mem.PA) {
	fl.setNext(pa, fl.head)
	fl.head = pa
	fl.nfree += 1
}

// Assumes caller holds fl.mu
func (fl *freelist) pop() (mem.PA, bool) {
	pa := fl.head
	if pa == 0 {
		return 0, false
	}
	fl.head = fl.next(pa)
	fl.nfree -= 1
	return pa, true
}

type Allocator struct {
	m      *mem.Arena
	start  mem.PA // first managed page; everything below is reserved
	end    mem.PA
	shards []*freelist
}

// MkAllocator creates an allocator with one freelist per processor. It
// manages no pages until Init.
func MkAllocator(m *mem.Arena, ncpu uint64) *Allocator {
	godbc.Require(ncpu > 0, "need at least one processor")
	var shards []*freelist
	for i := uint64(0); i < ncpu; i++ {
		shards = append(shards, mkFreelist(m))
	}
	return &Allocator{
		m:      m,
		shards: shards,
	}
}

// Init hands the whole pages of [start, end) to the allocator by freeing each
// of them on p. All initial pages therefore sit on p's freelist; other
// processors obtain their first pages by stealing.
//
// Init must run before any other use of a.
func (a *Allocator) Init(p *cpu.Proc, start mem.PA, end mem.PA) {
	godbc.Require(start < end, "empty range")
	godbc.Require(start >= a.m.Base() && end <= a.m.End(), "range outside arena")
	a.start = mem.PA(util.PgRoundUp(uint64(start), common.PGSIZE))
	a.end = mem.PA(util.PgRoundDown(uint64(end), common.PGSIZE))
	util.DPrintf(1, "kinit: [%#x, %#x) %d cpus\n",
		uint64(a.start), uint64(a.end), len(a.shards))
	for pa := a.start; pa+mem.PA(common.PGSIZE) <= a.end; pa += mem.PA(common.PGSIZE) {
		a.Free(p, pa)
	}
}

// local returns the freelist of the processor p runs on, locked. The
// identity read and the lock acquisition happen with interrupts off, so the
// caller cannot act on a stale identity.
func (a *Allocator) local(p *cpu.Proc) (*freelist, int) {
	p.PushOff()
	id := p.ID()
	if id < 0 || id >= len(a.shards) {
		panic(fmt.Errorf("kalloc: no freelist for cpu %d", id))
	}
	fl := a.shards[id]
	fl.mu.Lock()
	p.PopOff()
	return fl, id
}

// steal takes one page from the first non-empty foreign freelist.
func (a *Allocator) steal(self int) (mem.PA, bool) {
	for i, fl := range a.shards {
		if i == self {
			continue
		}
		fl.mu.Lock()
		pa, ok := fl.pop()
		fl.mu.Unlock()
		if ok {
			util.DPrintf(5, "kalloc: cpu %d stole %#x from cpu %d\n", self, uint64(pa), i)
			return pa, true
		}
	}
	return 0, false
}

// Alloc returns a page filled with ALLOCJUNK, or false if no processor has a
// free page.
func (a *Allocator) Alloc(p *cpu.Proc) (mem.PA, bool) {
	fl, id := a.local(p)
	pa, ok := fl.pop()
	fl.mu.Unlock()
	if !ok {
		pa, ok = a.steal(id)
	}
	if !ok {
		util.DPrintf(1, "kalloc: out of memory on cpu %d\n", id)
		return 0, false
	}
	util.Fill(a.m.Page(pa), common.ALLOCJUNK)
	return pa, true
}

// Free returns the page at pa to p's freelist. pa must be a page-aligned
// address inside the managed range; anything else is a caller bug and
// panics.
func (a *Allocator) Free(p *cpu.Proc, pa mem.PA) {
	if uint64(pa)%common.PGSIZE != 0 {
		panic(fmt.Errorf("kfree: misaligned %#x", uint64(pa)))
	}
	if pa < a.start || pa >= a.end {
		panic(fmt.Errorf("kfree: %#x outside [%#x, %#x)",
			uint64(pa), uint64(a.start), uint64(a.end)))
	}

	util.Fill(a.m.Page(pa), common.FREEJUNK)

	fl, _ := a.local(p)
	fl.push(pa)
	fl.mu.Unlock()
}

// Page returns the bytes of an allocated page.
func (a *Allocator) Page(pa mem.PA) []byte {
	return a.m.Page(pa)
}

// NumPages is the number of pages the allocator manages.
func (a *Allocator) NumPages() uint64 {
	return mem.NumPages(a.start, a.end)
}

// NumFree sums the freelist lengths. The lists are visited one at a time
// while other processors keep allocating, so the result is only a snapshot
// of each list at a different instant; do not use it for correctness.
func (a *Allocator) NumFree() uint64 {
	n := uint64(0)
	for _, fl := range a.shards {
		fl.mu.Lock()
		n += fl.nfree
		fl.mu.Unlock()
	}
	return n
}

// NumFreeOn reports the length of processor id's freelist.
func (a *Allocator) NumFreeOn(id int) uint64 {
	fl := a.shards[id]
	fl.mu.Lock()
	n := fl.nfree
	fl.mu.Unlock()
	return n
}
