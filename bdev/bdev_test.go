package bdev

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-kpool/common"
)

func mkBlock(b byte) disk.Block {
	block := make(disk.Block, disk.BlockSize)
	for i := range block {
		block[i] = b
	}
	return block
}

func TestTableReadWrite(t *testing.T) {
	assert := assert.New(t)
	tbl := MkTable()
	assert.Nil(tbl.Attach(common.ROOTDEV, disk.NewMemDisk(100)))
	assert.Nil(tbl.Attach(2, disk.NewMemDisk(10)))
	assert.NotNil(tbl.Attach(2, disk.NewMemDisk(10)), "double attach")
	assert.Equal(2, tbl.NumDevices())

	tbl.WriteBlock(common.ROOTDEV, 5, mkBlock(1))
	tbl.WriteBlock(2, 5, mkBlock(2))

	b := make(disk.Block, disk.BlockSize)
	tbl.ReadBlock(common.ROOTDEV, 5, b)
	assert.Equal(mkBlock(1), b)
	tbl.ReadBlock(2, 5, b)
	assert.Equal(mkBlock(2), b, "devices are independent")
	tbl.ReadBlock(2, 6, b)
	assert.Equal(mkBlock(0), b)

	assert.Equal(uint64(3), tbl.Reads())
	assert.Equal(uint64(2), tbl.Writes())
}

func TestTableWriteCopies(t *testing.T) {
	tbl := MkTable()
	assert.Nil(t, tbl.Attach(1, disk.NewMemDisk(4)))
	blk := mkBlock(3)
	tbl.WriteBlock(1, 0, blk)
	blk[0] = 9
	b := make(disk.Block, disk.BlockSize)
	tbl.ReadBlock(1, 0, b)
	assert.Equal(t, byte(3), b[0], "later changes to the source must not leak")
}

func TestTableBadIO(t *testing.T) {
	tbl := MkTable()
	assert.Nil(t, tbl.Attach(1, disk.NewMemDisk(4)))
	b := make(disk.Block, disk.BlockSize)
	assert.Panics(t, func() { tbl.ReadBlock(7, 0, b) }, "unknown device")
	assert.Panics(t, func() { tbl.ReadBlock(1, 4, b) }, "out of range")
	assert.Panics(t, func() { tbl.WriteBlock(1, 0, b[:10]) }, "short buffer")
}

func TestDetach(t *testing.T) {
	tbl := MkTable()
	assert.Nil(t, tbl.Attach(1, disk.NewMemDisk(4)))
	assert.Nil(t, tbl.Detach(1))
	assert.NotNil(t, tbl.Detach(1))
	assert.Equal(t, 0, tbl.NumDevices())
}

func TestFileDisk(t *testing.T) {
	assert := assert.New(t)
	path := filepath.Join(t.TempDir(), "disk.img")
	d, err := NewFileDisk(path, 16)
	assert.Nil(err)
	assert.Equal(uint64(16), d.Size())

	tbl := MkTable()
	assert.Nil(tbl.Attach(1, d))
	tbl.WriteBlock(1, 3, mkBlock(4))
	tbl.Sync()
	assert.Nil(tbl.Detach(1))

	d, err = NewFileDisk(path, 16)
	assert.Nil(err)
	assert.Equal(mkBlock(4), d.Read(3), "written block survives reopen")
	assert.Equal(mkBlock(0), d.Read(2))
	d.Close()
}
