package hwio

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

type bankReg struct {
	regPtr any
	offset uint16
}

type tagOptions struct {
	bank     int
	offset   uint16
	hasOff   bool
	size     int
	vsize    int
	reset    uint8
	rwmask   uint8
	hasMask  bool
	readonly bool
	wronly   bool
	rcb      string
	wcb      string
}

func parseTag(fieldName, tag string) (tagOptions, error) {
	opts := tagOptions{}
	for _, opt := range strings.Split(tag, ",") {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}
		key, val, hasVal := strings.Cut(opt, "=")

		num := func() (uint64, error) {
			if !hasVal {
				return 0, fmt.Errorf("field %s: option %q requires a value", fieldName, key)
			}
			return strconv.ParseUint(val, 0, 32)
		}

		var err error
		var n uint64
		switch key {
		case "bank":
			n, err = num()
			opts.bank = int(n)
		case "offset":
			n, err = num()
			opts.offset = uint16(n)
			opts.hasOff = true
		case "size":
			n, err = num()
			opts.size = int(n)
		case "vsize":
			n, err = num()
			opts.vsize = int(n)
		case "reset":
			n, err = num()
			opts.reset = uint8(n)
		case "rwmask":
			n, err = num()
			opts.rwmask = uint8(n)
			opts.hasMask = true
		case "readonly":
			opts.readonly = true
		case "writeonly":
			opts.wronly = true
		case "rcb":
			opts.rcb = "Read" + strings.ToUpper(fieldName)
			if hasVal {
				opts.rcb = val
			}
		case "wcb":
			opts.wcb = "Write" + strings.ToUpper(fieldName)
			if hasVal {
				opts.wcb = val
			}
		default:
			err = fmt.Errorf("field %s: unknown hwio option %q", fieldName, key)
		}
		if err != nil {
			return opts, err
		}
	}
	return opts, nil
}

func method[T any](bank reflect.Value, name string) (T, error) {
	var zero T
	m := bank.MethodByName(name)
	if !m.IsValid() {
		return zero, fmt.Errorf("method %s not found on %s", name, bank.Type())
	}
	fn, ok := m.Interface().(T)
	if !ok {
		return zero, fmt.Errorf("method %s has wrong signature %s, want %T", name, m.Type(), zero)
	}
	return fn, nil
}

func fields(bank any) (reflect.Value, reflect.Value, error) {
	ptr := reflect.ValueOf(bank)
	if ptr.Kind() != reflect.Pointer || ptr.Elem().Kind() != reflect.Struct {
		return ptr, ptr, fmt.Errorf("hwio: expected pointer to struct, got %T", bank)
	}
	return ptr, ptr.Elem(), nil
}

// InitRegs initializes all hwio fields of bank (a pointer to struct) using
// their "hwio" struct tag. The tag is a comma separated list of options:
//
//	bank=N      bank number (default 0), see Table.MapBank
//	offset=0x12 offset within the bank, fields without offset are not mapped
//	size=N      Mem: size of the buffer to allocate; Device: mapped size
//	vsize=N     Mem: virtual (mirrored) size
//	reset=0xNN  Reg8: reset value
//	rwmask=0xNN Reg8: writable bits
//	readonly    Reg8/Device: writes are ignored
//	writeonly   Reg8/Device: reads return 0xFF
//	rcb[=Name]  read callback, defaults to Read+FIELDNAME
//	wcb[=Name]  write callback, defaults to Write+FIELDNAME
func InitRegs(bank any) error {
	ptr, val, err := fields(bank)
	if err != nil {
		return err
	}

	typ := val.Type()
	for i := range typ.NumField() {
		f := typ.Field(i)
		tag, ok := f.Tag.Lookup("hwio")
		if !ok {
			continue
		}
		opts, err := parseTag(f.Name, tag)
		if err != nil {
			return err
		}

		switch reg := val.Field(i).Addr().Interface().(type) {
		case *Reg8:
			reg.Name = f.Name
			reg.Reset = opts.reset
			reg.Value = opts.reset
			if opts.hasMask {
				reg.RoMask = ^opts.rwmask
			}
			if opts.readonly {
				reg.Flags |= ReadOnlyFlag
			}
			if opts.wronly {
				reg.Flags |= WriteOnlyFlag
			}
			if opts.rcb != "" {
				if reg.ReadCb, err = method[func(uint8, bool) uint8](ptr, opts.rcb); err != nil {
					return err
				}
			}
			if opts.wcb != "" {
				if reg.WriteCb, err = method[func(uint8, uint8)](ptr, opts.wcb); err != nil {
					return err
				}
			}

		case *Mem:
			reg.Name = f.Name
			if opts.size != 0 && reg.Data == nil {
				reg.Data = make([]byte, opts.size)
			}
			reg.VSize = opts.vsize
			if reg.VSize == 0 {
				reg.VSize = opts.size
			}
			if opts.readonly {
				reg.Flags |= MemFlagReadOnly
			}
			if opts.wcb != "" {
				if reg.WriteCb, err = method[func(uint16, uint8)](ptr, opts.wcb); err != nil {
					return err
				}
			}

		case *Device:
			reg.Name = f.Name
			reg.Size = opts.size
			if opts.readonly {
				reg.Flags |= ReadOnlyFlag
			}
			if opts.wronly {
				reg.Flags |= WriteOnlyFlag
			}
			if opts.rcb != "" {
				if reg.ReadCb, err = method[func(uint16, bool) uint8](ptr, opts.rcb); err != nil {
					return err
				}
			}
			if opts.wcb != "" {
				if reg.WriteCb, err = method[func(uint16, uint8)](ptr, opts.wcb); err != nil {
					return err
				}
			}

		default:
			return fmt.Errorf("hwio: field %s has unsupported type %s", f.Name, f.Type)
		}
	}
	return nil
}

// MustInitRegs is like InitRegs but panics on error.
func MustInitRegs(bank any) {
	if err := InitRegs(bank); err != nil {
		panic(err)
	}
}

// ResetRegs restores all Reg8 fields of bank to their reset value and clears
// Mem buffers. Callbacks are not invoked.
func ResetRegs(bank any) {
	_, val, err := fields(bank)
	if err != nil {
		panic(err)
	}
	typ := val.Type()
	for i := range typ.NumField() {
		if _, ok := typ.Field(i).Tag.Lookup("hwio"); !ok {
			continue
		}
		switch reg := val.Field(i).Addr().Interface().(type) {
		case *Reg8:
			reg.Value = reg.Reset
		case *Mem:
			clear(reg.Data)
		}
	}
}

func bankGetRegs(bank any, bankNum int) ([]bankReg, error) {
	_, val, err := fields(bank)
	if err != nil {
		return nil, err
	}

	var regs []bankReg
	typ := val.Type()
	for i := range typ.NumField() {
		f := typ.Field(i)
		tag, ok := f.Tag.Lookup("hwio")
		if !ok {
			continue
		}
		opts, err := parseTag(f.Name, tag)
		if err != nil {
			return nil, err
		}
		if !opts.hasOff || opts.bank != bankNum {
			continue
		}
		regs = append(regs, bankReg{
			regPtr: val.Field(i).Addr().Interface(),
			offset: opts.offset,
		})
	}
	return regs, nil
}
