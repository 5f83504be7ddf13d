package log

import (
	"fmt"
	"sync"
	"time"

	"gopkg.in/Sirupsen/logrus.v0"
)

const maxFields = 16

// EntryZ is a log entry being built. All methods accept a nil receiver so
// that disabled log statements cost almost nothing:
//
//	log.ModCPU.DebugZ("opcode").Hex16("pc", pc).End()
type EntryZ struct {
	lvl Level
	mod Module
	msg string

	format string
	args   []any

	zfbuf [maxFields]ZField
	zfidx int
}

var entryPool = sync.Pool{
	New: func() any { return new(EntryZ) },
}

func NewEntryZ() *EntryZ {
	e := entryPool.Get().(*EntryZ)
	e.zfidx = 0
	e.format = ""
	e.args = nil
	return e
}

// A LogContext adds fields to every log entry, for example the current
// program counter.
type LogContext interface {
	AddLogContext(e *EntryZ)
}

var contexts []LogContext

func AddContext(c LogContext) {
	contexts = append(contexts, c)
}

func ResetContexts() {
	contexts = nil
}

func (e *EntryZ) add(f ZField) *EntryZ {
	if e == nil {
		return nil
	}
	if e.zfidx < maxFields {
		e.zfbuf[e.zfidx] = f
		e.zfidx++
	}
	return e
}

func (e *EntryZ) String(key, val string) *EntryZ {
	return e.add(ZField{Key: key, kind: kindString, str: val})
}

func (e *EntryZ) Bool(key string, val bool) *EntryZ {
	f := ZField{Key: key, kind: kindBool}
	if val {
		f.num = 1
	}
	return e.add(f)
}

func (e *EntryZ) Hex8(key string, val uint8) *EntryZ {
	return e.add(ZField{Key: key, kind: kindHex8, num: int64(val)})
}

func (e *EntryZ) Hex16(key string, val uint16) *EntryZ {
	return e.add(ZField{Key: key, kind: kindHex16, num: int64(val)})
}

func (e *EntryZ) Int(key string, val int) *EntryZ {
	return e.add(ZField{Key: key, kind: kindInt, num: int64(val)})
}

func (e *EntryZ) Int64(key string, val int64) *EntryZ {
	return e.add(ZField{Key: key, kind: kindInt, num: val})
}

func (e *EntryZ) Uint8(key string, val uint8) *EntryZ {
	return e.add(ZField{Key: key, kind: kindUint, num: int64(val)})
}

func (e *EntryZ) Uint16(key string, val uint16) *EntryZ {
	return e.add(ZField{Key: key, kind: kindUint, num: int64(val)})
}

func (e *EntryZ) Uint32(key string, val uint32) *EntryZ {
	return e.add(ZField{Key: key, kind: kindUint, num: int64(val)})
}

func (e *EntryZ) Error(key string, err error) *EntryZ {
	f := ZField{Key: key, kind: kindError}
	if err != nil {
		f.obj = errString{err}
	}
	return e.add(f)
}

func (e *EntryZ) Duration(key string, d time.Duration) *EntryZ {
	return e.add(ZField{Key: key, kind: kindDuration, num: int64(d)})
}

func (e *EntryZ) Stringer(key string, s fmt.Stringer) *EntryZ {
	return e.add(ZField{Key: key, kind: kindStringer, obj: s})
}

func (e *EntryZ) Blob(key string, buf []byte) *EntryZ {
	return e.add(ZField{Key: key, kind: kindBlob, obj: buf})
}

// End emits the entry and returns it to the pool.
func (e *EntryZ) End() {
	if e == nil {
		return
	}

	for _, c := range contexts {
		c.AddLogContext(e)
	}

	fields := make(logrus.Fields, e.zfidx+1)
	fields["_mod"] = e.mod.String()
	for i := range e.zfbuf[:e.zfidx] {
		fields[e.zfbuf[i].Key] = e.zfbuf[i].Value()
	}

	entry := logrus.StandardLogger().WithFields(fields)
	msg := e.msg
	if e.format != "" {
		msg = fmt.Sprintf(e.format, e.args...)
	}

	switch e.lvl {
	case PanicLevel:
		entryPool.Put(e)
		entry.Panic(msg)
	case FatalLevel:
		entryPool.Put(e)
		entry.Fatal(msg)
	case ErrorLevel:
		entry.Error(msg)
	case WarnLevel:
		entry.Warn(msg)
	case InfoLevel:
		entry.Info(msg)
	default:
		entry.Debug(msg)
	}
	entryPool.Put(e)
}
