package hw

// Flags is the F register.
type Flags uint8

const (
	FlagC Flags = 1 << (iota + 4) // carry
	FlagH                         // half carry
	FlagN                         // subtract
	FlagZ                         // zero

	flagsAll = FlagZ | FlagN | FlagH | FlagC
	flagsZNH = FlagZ | FlagN | FlagH
	flagsNHC = FlagN | FlagH | FlagC
)

func (f Flags) Z() bool { return f&FlagZ != 0 }
func (f Flags) N() bool { return f&FlagN != 0 }
func (f Flags) H() bool { return f&FlagH != 0 }
func (f Flags) C() bool { return f&FlagC != 0 }

// String returns the flags as "ZNHC", with '-' for cleared flags.
func (f Flags) String() string {
	const names = "ZNHC"
	var buf [4]byte
	for i := range 4 {
		if f&(FlagZ>>i) != 0 {
			buf[i] = names[i]
		} else {
			buf[i] = '-'
		}
	}
	return string(buf[:])
}
