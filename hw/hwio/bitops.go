package hwio

// 8-bit operations
func GetBit8(v uint8, n uint) bool {
	return GetBiti8(v, n) != 0
}

func GetBiti8(v uint8, n uint) uint8 {
	return v >> n & 0x01
}

func SetBit8(v *uint8, n uint) {
	*v |= 1 << n
}

func ClearBit8(v *uint8, n uint) {
	*v &^= 1 << n
}

// SetBitTo8 sets or clears bit n of v.
func SetBitTo8(v *uint8, n uint, set bool) {
	if set {
		SetBit8(v, n)
	} else {
		ClearBit8(v, n)
	}
}

// 16-bit operations
func GetBit16(v uint16, n uint) bool {
	return v>>n&0x01 != 0
}

// B2U8 converts a boolean into 0 or 1.
func B2U8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
