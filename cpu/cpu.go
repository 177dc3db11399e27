// Package cpu models the processor contexts that enter the allocators.
//
// A Proc stands for one processor. Code running "on" a Proc may only read
// its identity while interrupts are disabled on it, so that the identity
// cannot go stale through a migration between the read and its use. As with
// xv6's push_off/pop_off, disabling is nested: interrupts come back only when
// every PushOff has been matched by a PopOff.
//
// A Proc is owned by the goroutine executing on it and is not safe for
// concurrent use.
package cpu

import (
	"fmt"
)

type Proc struct {
	id     int
	noff   uint64 // depth of PushOff nesting
	intena bool   // were interrupts enabled before the outermost PushOff?
	intr   bool   // interrupts currently enabled
}

func MkProc(id int) *Proc {
	return &Proc{id: id, intr: true}
}

// MkProcs returns processors 0 through n-1.
func MkProcs(n uint64) []*Proc {
	procs := make([]*Proc, 0, n)
	for i := uint64(0); i < n; i++ {
		procs = append(procs, MkProc(int(i)))
	}
	return procs
}

func (p *Proc) PushOff() {
	old := p.intr
	p.intr = false
	if p.noff == 0 {
		p.intena = old
	}
	p.noff += 1
}

func (p *Proc) PopOff() {
	if p.intr {
		panic("pop_off - interruptible")
	}
	if p.noff < 1 {
		panic("pop_off")
	}
	p.noff -= 1
	if p.noff == 0 && p.intena {
		p.intr = true
	}
}

// ID returns the processor's identity. Interrupts must be off.
func (p *Proc) ID() int {
	if p.intr {
		panic(fmt.Errorf("cpuid: processor %d interruptible", p.id))
	}
	return p.id
}

// IntrOn reports whether interrupts are enabled on p.
func (p *Proc) IntrOn() bool {
	return p.intr
}

// IntrOff disables interrupts outside of any PushOff nesting, as a trap
// handler entry would.
func (p *Proc) IntrOff() {
	p.intr = false
}

func (p *Proc) IntrEnable() {
	if p.noff > 0 {
		panic("intr_on: inside push_off")
	}
	p.intr = true
}

// Section runs f with interrupts disabled on p and hands it p's identity.
func (p *Proc) Section(f func(id int)) {
	p.PushOff()
	f(p.ID())
	p.PopOff()
}
