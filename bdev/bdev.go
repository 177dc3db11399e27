// Package bdev is the disk backend beneath the buffer cache.
//
// A Table routes block I/O for a device number to the disk.Disk attached
// under that number. I/O is synchronous: ReadBlock and WriteBlock return once
// the block has been copied.
package bdev

import (
	"fmt"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-kpool/common"
	"github.com/mit-pdos/go-kpool/util"
)

// Backend performs block I/O on behalf of the buffer cache.
type Backend interface {
	// ReadBlock fills into with block bn of device dev.
	ReadBlock(dev common.Dev, bn common.Bnum, into disk.Block)

	// WriteBlock stores from as block bn of device dev.
	WriteBlock(dev common.Dev, bn common.Bnum, from disk.Block)
}

var _ Backend = (*Table)(nil)

type Table struct {
	devs   *xsync.MapOf[common.Dev, disk.Disk]
	nread  atomic.Uint64
	nwrite atomic.Uint64
}

func MkTable() *Table {
	return &Table{
		devs: xsync.NewMapOf[common.Dev, disk.Disk](),
	}
}

// Attach makes d available as device dev.
func (t *Table) Attach(dev common.Dev, d disk.Disk) error {
	_, loaded := t.devs.LoadOrStore(dev, d)
	if loaded {
		return fmt.Errorf("bdev: device %d already attached", dev)
	}
	util.DPrintf(1, "bdev: attach %d (%d blocks)\n", dev, d.Size())
	return nil
}

// Detach removes dev and closes its disk.
func (t *Table) Detach(dev common.Dev) error {
	d, ok := t.devs.LoadAndDelete(dev)
	if !ok {
		return fmt.Errorf("bdev: device %d not attached", dev)
	}
	d.Close()
	util.DPrintf(1, "bdev: detach %d\n", dev)
	return nil
}

func (t *Table) lookup(dev common.Dev, bn common.Bnum, blk disk.Block) disk.Disk {
	d, ok := t.devs.Load(dev)
	if !ok {
		panic(fmt.Errorf("bdev: no device %d", dev))
	}
	if uint64(len(blk)) != disk.BlockSize {
		panic(fmt.Errorf("bdev: buffer is not block-sized (%d bytes)", len(blk)))
	}
	if bn >= d.Size() {
		panic(fmt.Errorf("bdev: out-of-bounds block %d on device %d", bn, dev))
	}
	return d
}

func (t *Table) ReadBlock(dev common.Dev, bn common.Bnum, into disk.Block) {
	d := t.lookup(dev, bn, into)
	copy(into, d.Read(bn))
	t.nread.Add(1)
	util.DPrintf(5, "bdev: read %d/%d\n", dev, bn)
}

func (t *Table) WriteBlock(dev common.Dev, bn common.Bnum, from disk.Block) {
	d := t.lookup(dev, bn, from)
	d.Write(bn, util.CloneByteSlice(from))
	t.nwrite.Add(1)
	util.DPrintf(5, "bdev: write %d/%d\n", dev, bn)
}

// Sync issues a barrier on every attached device.
func (t *Table) Sync() {
	t.devs.Range(func(dev common.Dev, d disk.Disk) bool {
		d.Barrier()
		return true
	})
}

// Reads reports how many blocks have been read through t.
func (t *Table) Reads() uint64 {
	return t.nread.Load()
}

func (t *Table) Writes() uint64 {
	return t.nwrite.Load()
}

func (t *Table) NumDevices() int {
	return t.devs.Size()
}
