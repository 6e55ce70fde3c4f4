package util

import "time"

// ResolveSeed returns seed, or a time based seed if seed is zero.  The result is never zero.
func ResolveSeed(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	s := time.Now().UnixNano()
	if s == 0 {
		s = 1
	}
	return s
}

// DeriveSeed mixes a base seed with a stream id and an index into an independent, non-zero seed.
// The same inputs always produce the same output.
func DeriveSeed(seed int64, stream uint64, index uint64) int64 {
	x := uint64(seed)
	x = splitmix64(x ^ splitmix64(stream))
	x = splitmix64(x ^ splitmix64(index+0x632be59bd9b4e019))
	if x == 0 {
		x = 0x9e3779b97f4a7c15
	}
	return int64(x)
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
