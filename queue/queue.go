// Package queue provides concurrent access to a list of shapes waiting for
// surface reconstruction.
package queue

import (
	"crypto/sha1"
	"encoding/binary"
	"math"
	"sync"

	"github.com/petar/GoLLRB/llrb"
	"gonum.org/v1/gonum/mat"
)

type digest [sha1.Size]byte

func hashShape(v mat.Vector) digest {
	data := make([]byte, v.Len()*8)
	for i := 0; i < v.Len(); i++ {
		binary.BigEndian.PutUint64(data[i*8:], math.Float64bits(v.AtVec(i)))
	}
	return sha1.Sum(data)
}

type item struct {
	seq   uint64
	hash  digest
	shape *mat.VecDense
}

func (i item) Less(than llrb.Item) bool {
	return i.seq < than.(item).seq
}

// Queue is a FIFO of shape vectors.  All methods are safe for concurrent use.
type Queue struct {
	mu    sync.Mutex
	items *llrb.LLRB
	index map[digest][]uint64
	next  uint64
}

func New() *Queue {
	return &Queue{
		items: llrb.New(),
		index: map[digest][]uint64{},
	}
}

// Push appends a copy of shape.
func (q *Queue) Push(shape mat.Vector) {
	v := mat.VecDenseCopyOf(shape)
	h := hashShape(v)

	q.mu.Lock()
	defer q.mu.Unlock()
	q.next++
	q.items.InsertNoReplace(item{seq: q.next, hash: h, shape: v})
	q.index[h] = append(q.index[h], q.next)
}

// Pop removes and returns the oldest shape.  It returns false when the queue
// is empty.
func (q *Queue) Pop() (*mat.VecDense, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.items.Len() == 0 {
		return nil, false
	}
	it := q.items.DeleteMin().(item)
	q.unindex(it)
	return it.shape, true
}

// Contains reports whether a shape equal to shape is queued.
func (q *Queue) Contains(shape mat.Vector) bool {
	h := hashShape(shape)

	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.matches(h, shape)) > 0
}

// Remove deletes every queued shape equal to shape.
func (q *Queue) Remove(shape mat.Vector) {
	h := hashShape(shape)

	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range q.matches(h, shape) {
		q.items.Delete(it)
		q.unindex(it)
	}
}

func (q *Queue) Empty() bool { return q.Len() == 0 }

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// matches must be called with q.mu held.
func (q *Queue) matches(h digest, shape mat.Vector) []item {
	var found []item
	for _, seq := range q.index[h] {
		got := q.items.Get(item{seq: seq})
		if got == nil {
			continue
		}
		it := got.(item)
		if it.shape.Len() == shape.Len() && mat.Equal(it.shape, shape) {
			found = append(found, it)
		}
	}
	return found
}

// unindex must be called with q.mu held.
func (q *Queue) unindex(it item) {
	seqs := q.index[it.hash]
	for i, seq := range seqs {
		if seq == it.seq {
			seqs = append(seqs[:i], seqs[i+1:]...)
			break
		}
	}
	if len(seqs) == 0 {
		delete(q.index, it.hash)
	} else {
		q.index[it.hash] = seqs
	}
}
