package basic

func Abs(x int8) int8 {
	if x < 0 {
		return -x
	}
	return x
}

func Classify(x uint8) uint8 {
	switch {
	case x < 10:
		return 0
	case x < 100:
		return 1
	}
	return 2
}

func Sum(n uint8) uint16 {
	var s uint16
	for i := uint8(0); i < n; i++ {
		s += uint16(i)
	}
	return s
}

func Twice(x int32) int32 {
	return double(x) + 1
}

func double(x int32) int32 {
	return x * 2
}

func Widen(x int8, y uint8) int64 {
	return int64(x) + int64(y)
}

func Diff(a, b uint8) uint8 {
	hi, lo := order(a, b)
	return hi - lo
}

func order(a, b uint8) (uint8, uint8) {
	if a < b {
		return b, a
	}
	return a, b
}

func Mask(x uint16) bool {
	return x&^0x00ff == 0x1200 || x^0xffff == 0
}

func Fact(n uint8) uint32 {
	if n <= 1 {
		return 1
	}
	return uint32(n) * Fact(n-1)
}

func Div(x, y uint8) uint8 {
	return x / y
}

func Shift(x uint8) uint8 {
	return x << 1
}

func MustPositive(x int16) int16 {
	if x <= 0 {
		panic("not positive")
	}
	return x
}
