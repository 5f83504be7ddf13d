package log

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

type fieldKind uint8

const (
	kindString fieldKind = iota
	kindBool
	kindInt
	kindUint
	kindHex8
	kindHex16
	kindError
	kindDuration
	kindStringer
	kindBlob
)

// ZField is a typed key/value pair. It's only formatted when the entry is
// emitted.
type ZField struct {
	Key string

	kind fieldKind
	num  int64
	str  string
	obj  any // error, fmt.Stringer or []byte
}

func (f *ZField) Value() string {
	switch f.kind {
	case kindString:
		return f.str
	case kindBool:
		return strconv.FormatBool(f.num != 0)
	case kindInt:
		return strconv.FormatInt(f.num, 10)
	case kindUint:
		return strconv.FormatUint(uint64(f.num), 10)
	case kindHex8:
		return fmt.Sprintf("%02x", uint8(f.num))
	case kindHex16:
		return fmt.Sprintf("%04x", uint16(f.num))
	case kindDuration:
		return time.Duration(f.num).String()
	case kindError, kindStringer:
		if f.obj == nil {
			return "<nil>"
		}
		return f.obj.(fmt.Stringer).String()
	case kindBlob:
		return hex.EncodeToString(f.obj.([]byte))
	}
	return "?"
}

// errString adapts an error to fmt.Stringer.
type errString struct{ error }

func (e errString) String() string { return e.Error() }
