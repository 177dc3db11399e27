package bio

//
// Recency lists of all buckets, kept in one array of index links.
//
// Slots [0, nbuf) are buffers; slot nbuf+i is the head of bucket i's circular
// list. head.next is the most recently used buffer, head.prev the least. The
// links of a slot are guarded by the lock of the bucket whose list holds it.
//

type link struct {
	prev int
	next int
}

type lists struct {
	links []link
	nbuf  int
}

func mkLists(nbuf int, nbucket int) *lists {
	l := &lists{
		links: make([]link, nbuf+nbucket),
		nbuf:  nbuf,
	}
	for i := 0; i < nbucket; i++ {
		h := l.head(i)
		l.links[h] = link{prev: h, next: h}
	}
	return l
}

func (l *lists) head(bkt int) int {
	return l.nbuf + bkt
}

func (l *lists) unlink(i int) {
	lk := l.links[i]
	l.links[lk.next].prev = lk.prev
	l.links[lk.prev].next = lk.next
	l.links[i] = link{prev: i, next: i}
}

// pushMRU links i in as bucket bkt's most recently used entry.
func (l *lists) pushMRU(bkt int, i int) {
	h := l.head(bkt)
	first := l.links[h].next
	l.links[i] = link{prev: h, next: first}
	l.links[first].prev = i
	l.links[h].next = i
}

// moveMRU moves i, already on bkt's list, to the most recently used end.
func (l *lists) moveMRU(bkt int, i int) {
	l.unlink(i)
	l.pushMRU(bkt, i)
}

// findLRU returns the first entry of bucket bkt's list, searching from the
// least recently used end, for which f is true, or -1.
func (l *lists) findLRU(bkt int, f func(i int) bool) int {
	h := l.head(bkt)
	for i := l.links[h].prev; i != h; i = l.links[i].prev {
		if f(i) {
			return i
		}
	}
	return -1
}
