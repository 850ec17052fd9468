package ram

import (
	"sync"
)

var (
	iterPool = make(map[int]map[int]*sync.Pool)
	iterLock sync.Mutex
)

func newIterPool(m, n int) *sync.Pool {
	return &sync.Pool{
		New: func() interface{} {
			return make([][]float32, m)
		},
	}
}

func borrowIterator(m, n int) [][]float32 {
	iterLock.Lock()
	var p *sync.Pool
	if d, ok := iterPool[m]; ok {
		p = d[n]
	}
	iterLock.Unlock()
	if p != nil {
		return p.Get().([][]float32)
	}
	return make([][]float32, m)
}

// ReturnIterator returns an iterator made by MakeIterator to the pool.
func ReturnIterator(m, n int, it [][]float32) {
	for i := range it {
		it[i] = nil
	}
	iterLock.Lock()
	d, ok := iterPool[m]
	if !ok {
		d = make(map[int]*sync.Pool)
		iterPool[m] = d
	}
	p, ok := d[n]
	if !ok {
		p = newIterPool(m, n)
		d[n] = p
	}
	iterLock.Unlock()
	p.Put(it)
}
