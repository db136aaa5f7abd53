// Command ksymbolize resolves a raw panic backtrace dumped to /sys/panicbuf
// (SPEC_FULL.md §2, spec.md §7.4) against the symbol table of the kernel
// image that produced it, and emits a pprof profile so the crash can be
// opened with `pprof -http`.
package main

import (
	"debug/elf"
	"fmt"
	"os"
	"sort"

	"github.com/google/pprof/profile"
	"github.com/ianlancetaylor/demangle"

	"kernix/util"
)

// readBacktrace decodes /sys/panicbuf's dump: a flat run of little-endian
// uint32 return addresses, oldest frame first (the panic handler's own
// no-allocation constraint rules out anything richer — spec.md §7.4 names
// only "a raw sample/backtrace buffer", leaving the exact wire shape to
// the writer and reader to agree on between themselves).
func readBacktrace(raw []byte) []uint32 {
	var addrs []uint32
	for off := 0; off+4 <= len(raw); off += 4 {
		addrs = append(addrs, util.ReadU32LE(raw, off))
	}
	return addrs
}

type symtab struct {
	addrs []uint32
	names []string
}

func loadSymtab(path string) (*symtab, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	syms, err := f.Symbols()
	if err != nil {
		return nil, err
	}
	st := &symtab{}
	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC {
			continue
		}
		st.addrs = append(st.addrs, uint32(s.Value))
		st.names = append(st.names, s.Name)
	}
	idx := make([]int, len(st.addrs))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return st.addrs[idx[i]] < st.addrs[idx[j]] })
	sortedAddrs := make([]uint32, len(idx))
	sortedNames := make([]string, len(idx))
	for i, j := range idx {
		sortedAddrs[i] = st.addrs[j]
		sortedNames[i] = st.names[j]
	}
	st.addrs, st.names = sortedAddrs, sortedNames
	return st, nil
}

// lookup finds the function symbol whose range contains addr: the last
// symbol whose address is <= addr, matching a linear-address backtrace's
// usual PC-to-function convention.
func (st *symtab) lookup(addr uint32) string {
	i := sort.Search(len(st.addrs), func(i int) bool { return st.addrs[i] > addr })
	if i == 0 {
		return fmt.Sprintf("0x%x", addr)
	}
	return st.names[i-1]
}

func main() {
	if len(os.Args) != 3 {
		fmt.Printf("usage: %s <panicbuf dump> <kernel elf image> > out.pb.gz\n", os.Args[0])
		os.Exit(1)
	}
	dumpPath, imagePath := os.Args[1], os.Args[2]

	raw, err := os.ReadFile(dumpPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ksymbolize: %v\n", err)
		os.Exit(1)
	}
	st, err := loadSymtab(imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ksymbolize: %v\n", err)
		os.Exit(1)
	}

	addrs := readBacktrace(raw)
	prof := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "panic", Unit: "count"}},
		PeriodType: &profile.ValueType{Type: "trace", Unit: "count"},
		Period:     1,
	}

	funcByName := make(map[string]*profile.Function)
	var locs []*profile.Location
	for i, addr := range addrs {
		rawName := st.lookup(addr)
		name := demangle.Filter(rawName)
		fn, ok := funcByName[name]
		if !ok {
			fn = &profile.Function{ID: uint64(len(prof.Function)) + 1, Name: name, SystemName: rawName}
			funcByName[name] = fn
			prof.Function = append(prof.Function, fn)
		}
		loc := &profile.Location{
			ID:      uint64(i) + 1,
			Address: uint64(addr),
			Line:    []profile.Line{{Function: fn}},
		}
		prof.Location = append(prof.Location, loc)
		locs = append(locs, loc)
	}
	prof.Sample = []*profile.Sample{{Location: locs, Value: []int64{1}}}

	if err := prof.Write(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "ksymbolize: writing profile: %v\n", err)
		os.Exit(1)
	}
}
