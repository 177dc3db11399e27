package mem

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mit-pdos/go-kpool/common"
)

func TestArenaPages(t *testing.T) {
	assert := assert.New(t)
	a, err := MkArena(PA(common.KERNBASE), 4*common.PGSIZE+1)
	assert.Nil(err)
	defer a.Close()

	assert.Equal(PA(common.KERNBASE), a.Base())
	assert.Equal(PA(common.KERNBASE+5*common.PGSIZE), a.End(), "size rounds up to whole pages")

	pg := a.Page(a.Base() + PA(common.PGSIZE))
	assert.Len(pg, int(common.PGSIZE))
	pg[0] = 7
	assert.Equal(byte(7), a.Page(a.Base() + PA(common.PGSIZE))[0])
	assert.Equal(byte(0), a.Page(a.Base())[0], "pages do not overlap")
}

func TestArenaBadPage(t *testing.T) {
	a, err := MkArena(PA(common.KERNBASE), 2*common.PGSIZE)
	assert.Nil(t, err)
	defer a.Close()

	assert.Panics(t, func() { a.Page(a.Base() + 1) }, "misaligned")
	assert.Panics(t, func() { a.Page(a.End()) }, "past the end")
	assert.Panics(t, func() { a.Page(a.Base() - PA(common.PGSIZE)) }, "below the base")
}

func TestNumPages(t *testing.T) {
	assert.Equal(t, uint64(3), NumPages(PA(4096), PA(4*4096)))
	assert.Equal(t, uint64(2), NumPages(PA(4097), PA(4*4096)), "start rounds up")
	assert.Equal(t, uint64(0), NumPages(PA(4*4096), PA(4*4096)))
	assert.Equal(t, uint64(0), NumPages(PA(4*4096+1), PA(4*4096+2)))
}
