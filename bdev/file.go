package bdev

import (
	"fmt"

	"github.com/tchajed/goose/machine/disk"
	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-kpool/util"
)

var _ disk.Disk = fileDisk{}

// fileDisk stores blocks in a regular file or block device.
type fileDisk struct {
	fd        int
	numBlocks uint64
}

// NewFileDisk opens (creating if needed) the file at path as a disk of
// numBlocks blocks.
func NewFileDisk(path string, numBlocks uint64) (disk.Disk, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT, 0666)
	if err != nil {
		return nil, fmt.Errorf("bdev: open %s: %w", path, err)
	}
	var stat unix.Stat_t
	err = unix.Fstat(fd, &stat)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bdev: stat %s: %w", path, err)
	}
	if (stat.Mode&unix.S_IFMT) == unix.S_IFREG &&
		uint64(stat.Size) != numBlocks*disk.BlockSize {
		err = unix.Ftruncate(fd, int64(numBlocks*disk.BlockSize))
		if err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("bdev: truncate %s: %w", path, err)
		}
	}
	return fileDisk{fd, numBlocks}, nil
}

func (d fileDisk) ReadTo(a uint64, buf disk.Block) {
	if uint64(len(buf)) != disk.BlockSize {
		panic("buffer is not block-sized")
	}
	if a >= d.numBlocks {
		panic(fmt.Errorf("out-of-bounds read at %v", a))
	}
	_, err := unix.Pread(d.fd, buf, int64(a*disk.BlockSize))
	if err != nil {
		panic("read failed: " + err.Error())
	}
}

func (d fileDisk) Read(a uint64) disk.Block {
	buf := make([]byte, disk.BlockSize)
	d.ReadTo(a, buf)
	return buf
}

func (d fileDisk) Write(a uint64, v disk.Block) {
	if uint64(len(v)) != disk.BlockSize {
		panic(fmt.Errorf("v is not block sized (%d bytes)", len(v)))
	}
	if a >= d.numBlocks {
		panic(fmt.Errorf("out-of-bounds write at %v", a))
	}
	_, err := unix.Pwrite(d.fd, v, int64(a*disk.BlockSize))
	if err != nil {
		panic("write failed: " + err.Error())
	}
}

func (d fileDisk) Size() uint64 {
	return d.numBlocks
}

func (d fileDisk) Barrier() {
	// NOTE: on macOS, this flushes to the drive but doesn't actually issue a
	// disk barrier; the correct replacement is fcntl with F_FULLFSYNC.
	err := unix.Fsync(d.fd)
	if err != nil {
		panic("file sync failed: " + err.Error())
	}
	util.DPrintf(5, "barrier\n")
}

func (d fileDisk) Close() {
	err := unix.Close(d.fd)
	if err != nil {
		panic(err)
	}
}
