package controller

// Window is a contiguous slice of the news rows to load, committed as one transaction.
type Window struct {
	Index  int
	Offset int
	Size   int
}

// Windows splits total rows into ceil(total/batchSize) windows.  All windows hold batchSize rows
// except the last, which holds the remainder when total isn't a multiple of batchSize.
func Windows(total int, batchSize int) []Window {
	if total <= 0 || batchSize <= 0 {
		return nil
	}
	count := (total + batchSize - 1) / batchSize
	windows := make([]Window, count)
	for i := range windows {
		offset := i * batchSize
		size := batchSize
		if remaining := total - offset; remaining < size {
			size = remaining
		}
		windows[i] = Window{Index: i, Offset: offset, Size: size}
	}
	return windows
}
