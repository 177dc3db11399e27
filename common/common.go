package common

import (
	"github.com/tchajed/goose/machine/disk"
)

const (
	PGSIZE uint64 = 4096

	NCPU    uint64 = 8
	NBUF    uint64 = 30
	NBUCKET uint64 = 13

	BSIZE = disk.BlockSize

	KERNBASE uint64 = 0x80000000 // first physical address of the arena
)

// Fill patterns written over page contents.
const (
	FREEJUNK  byte = 0x01 // written by free, catches dangling references
	ALLOCJUNK byte = 0x05 // written by alloc, catches uninitialized use
)

type Dev = uint32
type Bnum = uint64

const (
	ROOTDEV  Dev  = 1
	NULLBNUM Bnum = 0
)
