package ram

// MakeIterator makes a row major iterator over an image of m rows and n columns: it[y][x] is pix[y*n + x].
// The rows share memory with pix. Return the iterator with ReturnIterator when done.
func MakeIterator(pix []float32, m, n int) (retVal [][]float32) {
	retVal = borrowIterator(m, n)
	for i := range retVal {
		start := i * n
		retVal[i] = pix[start : start+n : start+n]
	}
	return
}
