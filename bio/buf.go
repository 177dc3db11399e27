package bio

import (
	"github.com/tchajed/goose/machine/disk"
	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-kpool/common"
	"github.com/mit-pdos/go-kpool/sleeplock"
)

// A Buf caches one disk block.
//
// The bucket lock of the Buf's bucket guards its key, refcnt and list
// position. lock guards Data and valid; it is acquired only after every
// bucket lock has been released.
type Buf struct {
	lock   *sleeplock.Lock
	id     int // slot in the cache
	bucket int // whose list the buf is on

	dev    common.Dev
	blkno  common.Bnum
	used   bool // dev and blkno name a block
	valid  bool // Data holds the block's contents
	refcnt uint64

	Data disk.Block
}

func mkBuf(id int, data disk.Block) *Buf {
	return &Buf{
		lock: sleeplock.MkLock("buffer"),
		id:   id,
		Data: data,
	}
}

func (b *Buf) Dev() common.Dev {
	return b.dev
}

func (b *Buf) Blkno() common.Bnum {
	return b.blkno
}

func (b *Buf) matches(dev common.Dev, blkno common.Bnum) bool {
	return b.used && b.dev == dev && b.blkno == blkno
}

// assign repurposes b for (dev, blkno) on behalf of one holder.
func (b *Buf) assign(dev common.Dev, blkno common.Bnum) {
	b.dev = dev
	b.blkno = blkno
	b.used = true
	b.valid = false
	b.refcnt = 1
}

// BnumGet decodes the block number stored at byte offset off.
func (b *Buf) BnumGet(off uint64) common.Bnum {
	dec := marshal.NewDec(b.Data[off : off+8])
	return common.Bnum(dec.GetInt())
}

// BnumPut encodes v at byte offset off.
func (b *Buf) BnumPut(off uint64, v common.Bnum) {
	enc := marshal.NewEnc(8)
	enc.PutInt(uint64(v))
	copy(b.Data[off:off+8], enc.Finish())
}
