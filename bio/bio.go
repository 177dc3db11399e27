// Package bio is the buffer cache: a fixed pool of block buffers shared by
// every caller that reads or writes disk blocks.
//
// Caching blocks avoids disk reads and gives concurrent users of a block a
// single copy to synchronize on. Interface:
//   - Read returns a locked buffer holding a block's contents.
//   - After changing Data, call Write to write it to disk.
//   - Call Release when done, and do not use the buffer afterwards.
//   - Only one caller at a time holds a buffer, so hold it briefly.
//
// The pool is split into buckets selected by block number, each with its own
// lock and recency list, so that lookups of different blocks rarely contend.
// A miss reuses the least recently used idle buffer of the block's bucket or,
// failing that, steals an idle buffer from another bucket. Recency is
// therefore only ordered within a bucket, not across the whole cache.
//
// Lock order: bucket locks are acquired in ascending bucket index. A caller
// holds at most two of them (its home bucket and one victim), and never holds
// one while sleeping on a buffer lock or doing disk I/O.
package bio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lpabon/godbc"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-kpool/bdev"
	"github.com/mit-pdos/go-kpool/common"
	"github.com/mit-pdos/go-kpool/util"
)

type bucket struct {
	mu *sync.Mutex
	n  uint64 // number of bufs on this bucket's list
}

type Stats struct {
	Hits   uint64
	Misses uint64
	Steals uint64
	Reads  uint64 // blocks read from disk
	Writes uint64
}

type Cache struct {
	be      bdev.Backend
	bufs    []*Buf
	lists   *lists
	buckets []*bucket
	policy  ExhaustionPolicy

	hits   atomic.Uint64
	misses atomic.Uint64
	steals atomic.Uint64
	reads  atomic.Uint64
	writes atomic.Uint64
}

// MkCache creates a cache of nbuf buffers spread over nbucket buckets. Block
// I/O goes to be. Buffers are given their first block lazily.
func MkCache(be bdev.Backend, nbucket uint64, nbuf uint64) *Cache {
	godbc.Require(nbucket > 0, "need at least one bucket")
	godbc.Require(nbuf > 0, "need at least one buffer")
	c := &Cache{
		be:     be,
		lists:  mkLists(int(nbuf), int(nbucket)),
		policy: FailFast{},
	}
	for i := uint64(0); i < nbucket; i++ {
		c.buckets = append(c.buckets, &bucket{mu: new(sync.Mutex)})
	}
	data := make([]byte, nbuf*disk.BlockSize)
	for i := uint64(0); i < nbuf; i++ {
		b := mkBuf(int(i), data[i*disk.BlockSize:(i+1)*disk.BlockSize])
		b.bucket = int(i % nbucket)
		c.bufs = append(c.bufs, b)
		c.lists.pushMRU(b.bucket, b.id)
		c.buckets[b.bucket].n += 1
	}
	util.DPrintf(1, "binit: %d bufs in %d buckets\n", nbuf, nbucket)
	return c
}

// SetPolicy replaces the FailFast default. It must be called before the
// cache is shared.
func (c *Cache) SetPolicy(p ExhaustionPolicy) {
	c.policy = p
}

func (c *Cache) hash(blkno common.Bnum) int {
	return int(blkno % uint64(len(c.buckets)))
}

func (c *Cache) lockPair(a int, b int) {
	if a < b {
		c.buckets[a].mu.Lock()
		c.buckets[b].mu.Lock()
	} else {
		c.buckets[b].mu.Lock()
		c.buckets[a].mu.Lock()
	}
}

func (c *Cache) unlockPair(a int, b int) {
	c.buckets[a].mu.Unlock()
	c.buckets[b].mu.Unlock()
}

// Assumes caller holds bucket bkt's lock
func (c *Cache) lookup(bkt int, dev common.Dev, blkno common.Bnum) *Buf {
	id := c.lists.findLRU(bkt, func(i int) bool {
		return c.bufs[i].matches(dev, blkno)
	})
	if id < 0 {
		return nil
	}
	return c.bufs[id]
}

// idle returns bkt's least recently used unreferenced buf.
//
// Assumes caller holds bucket bkt's lock
func (c *Cache) idle(bkt int) *Buf {
	id := c.lists.findLRU(bkt, func(i int) bool {
		return c.bufs[i].refcnt == 0
	})
	if id < 0 {
		return nil
	}
	return c.bufs[id]
}

// claimHome finds blkno in, or recycles an idle buf of, its home bucket h.
//
// Assumes caller holds bucket h's lock
func (c *Cache) claimHome(h int, dev common.Dev, blkno common.Bnum) *Buf {
	b := c.lookup(h, dev, blkno)
	if b != nil {
		b.refcnt += 1
		c.hits.Add(1)
		return b
	}
	b = c.idle(h)
	if b != nil {
		util.DPrintf(5, "bget: %d/%d reuses %d/%d\n", dev, blkno, b.dev, b.blkno)
		b.assign(dev, blkno)
		c.misses.Add(1)
		return b
	}
	return nil
}

// steal moves an idle buf from another bucket to h for blkno. Victims are
// visited in ascending index order; each attempt holds h and the victim
// together, locked in index order. Since h was unlocked after the local miss,
// h is searched again under each pair before stealing.
func (c *Cache) steal(h int, dev common.Dev, blkno common.Bnum) *Buf {
	for v := range c.buckets {
		if v == h {
			continue
		}
		c.lockPair(h, v)
		b := c.claimHome(h, dev, blkno)
		if b != nil {
			c.unlockPair(h, v)
			return b
		}
		b = c.idle(v)
		if b != nil {
			c.lists.unlink(b.id)
			c.buckets[v].n -= 1
			c.lists.pushMRU(h, b.id)
			c.buckets[h].n += 1
			b.bucket = h
			b.assign(dev, blkno)
			c.unlockPair(h, v)
			c.misses.Add(1)
			c.steals.Add(1)
			util.DPrintf(5, "bget: %d/%d stole buf %d from bucket %d\n", dev, blkno, b.id, v)
			return b
		}
		c.unlockPair(h, v)
	}
	return nil
}

// get returns the buf for (dev, blkno), locked and referenced, assigning an
// idle buf if the block is not cached.
func (c *Cache) get(dev common.Dev, blkno common.Bnum) *Buf {
	h := c.hash(blkno)
	for {
		c.buckets[h].mu.Lock()
		b := c.claimHome(h, dev, blkno)
		c.buckets[h].mu.Unlock()
		if b == nil {
			b = c.steal(h, dev, blkno)
		}
		if b != nil {
			b.lock.Acquire()
			return b
		}
		c.policy.Exhausted(dev, blkno)
	}
}

// Read returns a locked buf with the contents of block blkno of dev.
func (c *Cache) Read(dev common.Dev, blkno common.Bnum) *Buf {
	b := c.get(dev, blkno)
	if !b.valid {
		c.be.ReadBlock(dev, blkno, b.Data)
		b.valid = true
		c.reads.Add(1)
	}
	return b
}

// Write writes b's contents to disk. The caller must hold b.
func (c *Cache) Write(b *Buf) {
	if !b.lock.Holding() {
		panic("bwrite")
	}
	c.be.WriteBlock(b.dev, b.blkno, b.Data)
	c.writes.Add(1)
}

// Release unlocks b and drops the caller's reference. The last reference
// makes b its bucket's most recently used buf; b stays in its bucket.
func (c *Cache) Release(b *Buf) {
	if !b.lock.Holding() {
		panic("brelse")
	}
	b.lock.Release()

	bkt := c.buckets[b.bucket]
	bkt.mu.Lock()
	if b.refcnt == 0 {
		bkt.mu.Unlock()
		panic("brelse: refcnt")
	}
	b.refcnt -= 1
	if b.refcnt == 0 {
		c.lists.moveMRU(b.bucket, b.id)
	}
	bkt.mu.Unlock()
}

// Pin keeps b resident past its holder's Release, until a matching Unpin.
// The caller must hold a reference to b.
func (c *Cache) Pin(b *Buf) {
	bkt := c.buckets[b.bucket]
	bkt.mu.Lock()
	b.refcnt += 1
	bkt.mu.Unlock()
}

func (c *Cache) Unpin(b *Buf) {
	bkt := c.buckets[b.bucket]
	bkt.mu.Lock()
	if b.refcnt == 0 {
		bkt.mu.Unlock()
		panic(fmt.Errorf("bunpin: %d/%d not referenced", b.dev, b.blkno))
	}
	b.refcnt -= 1
	bkt.mu.Unlock()
}

// NumBuckets reports how many buckets the cache has.
func (c *Cache) NumBuckets() int {
	return len(c.buckets)
}

// BucketLen reports how many bufs are on bucket i's list.
func (c *Cache) BucketLen(i int) uint64 {
	bkt := c.buckets[i]
	bkt.mu.Lock()
	n := bkt.n
	bkt.mu.Unlock()
	return n
}

func (c *Cache) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Steals: c.steals.Load(),
		Reads:  c.reads.Load(),
		Writes: c.writes.Load(),
	}
}
