package main

import (
	"errors"
	"fmt"

	"github.com/seal9055/vfuzz/device/acpi/table"
	"github.com/seal9055/vfuzz/device/acpi/table/tablegen"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

var (
	errRevision  = errors.New("revision must be 0 or 2")
	errSignature = errors.New("table signatures must be 4 characters long")
)

// processor is the starlark value returned by the lapic() and x2apic()
// builtins.
type processor struct {
	x2apic bool
	id     uint32
	flags  uint32
	uid    uint32
}

func (p *processor) String() string {
	if p.x2apic {
		return fmt.Sprintf("x2apic(%d, %d, %d)", p.id, p.flags, p.uid)
	}
	return fmt.Sprintf("lapic(%d, %d)", p.id, p.flags)
}

func (p *processor) Type() string          { return "processor" }
func (p *processor) Freeze()               {}
func (p *processor) Truth() starlark.Bool  { return starlark.True }
func (p *processor) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable: %s", p.Type()) }

func builtinLAPIC(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var id, flags = 0, int(table.ProcessorEnabled)
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "id", &id, "flags?", &flags); err != nil {
		return nil, err
	}

	if id < 0 || id > 0xff {
		return nil, fmt.Errorf("%s: APIC ID %d does not fit in 8 bits; use x2apic()", fn.Name(), id)
	}

	return &processor{id: uint32(id), flags: uint32(flags)}, nil
}

func builtinX2APIC(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var id, flags, uid = 0, int(table.ProcessorEnabled), -1
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "id", &id, "flags?", &flags, "uid?", &uid); err != nil {
		return nil, err
	}

	if id < 0 || int64(id) > 0xffffffff {
		return nil, fmt.Errorf("%s: invalid APIC ID %d", fn.Name(), id)
	}

	if uid < 0 {
		uid = id
	}

	return &processor{x2apic: true, id: uint32(id), flags: uint32(flags), uid: uint32(uid)}, nil
}

// loadPlatform executes the starlark script in src and converts the globals
// it defines into a platform description. If src is nil the script is read
// from filename.
func loadPlatform(filename string, src interface{}) (*tablegen.Platform, error) {
	predeclared := starlark.StringDict{
		"ENABLED":        starlark.MakeInt(int(table.ProcessorEnabled)),
		"ONLINE_CAPABLE": starlark.MakeInt(int(table.ProcessorOnlineCapable)),
		"lapic":          starlark.NewBuiltin("lapic", builtinLAPIC),
		"x2apic":         starlark.NewBuiltin("x2apic", builtinX2APIC),
	}

	thread := &starlark.Thread{Name: filename}
	globals, err := starlark.ExecFileOptions(&syntax.FileOptions{}, thread, filename, src, predeclared)
	if err != nil {
		return nil, err
	}

	platform := &tablegen.Platform{EBDA: tablegen.DefaultEBDA}

	if v, ok := globals["revision"]; ok {
		rev, err := starlark.AsInt32(v)
		if err != nil {
			return nil, fmt.Errorf("revision: %w", err)
		}
		if rev != 0 && rev != 2 {
			return nil, errRevision
		}
		platform.Revision = uint8(rev)
	}

	if v, ok := globals["rsdp_in_ebda"]; ok {
		platform.RSDPInEBDA = bool(v.Truth())
	}

	madt := tablegen.NewMADT()
	if v, ok := globals["processors"]; ok {
		procs, ok := v.(*starlark.List)
		if !ok {
			return nil, fmt.Errorf("processors: got %s, want list", v.Type())
		}

		for i := 0; i < procs.Len(); i++ {
			p, ok := procs.Index(i).(*processor)
			if !ok {
				return nil, fmt.Errorf("processors[%d]: got %s, want processor", i, procs.Index(i).Type())
			}

			if p.x2apic {
				madt.LocalX2APIC(p.id, p.flags, p.uid)
			} else {
				madt.LocalAPIC(uint8(i), uint8(p.id), p.flags)
			}
		}
	}
	platform.Tables = append(platform.Tables, madt.Bytes())

	if v, ok := globals["extra_tables"]; ok {
		sigs, ok := v.(*starlark.List)
		if !ok {
			return nil, fmt.Errorf("extra_tables: got %s, want list", v.Type())
		}

		for i := 0; i < sigs.Len(); i++ {
			sig, ok := starlark.AsString(sigs.Index(i))
			if !ok || len(sig) != 4 {
				return nil, errSignature
			}
			platform.Tables = append(platform.Tables, tablegen.SDT(sig, 1, nil))
		}
	}

	return platform, nil
}
