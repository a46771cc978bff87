package refine_test

import (
	"testing"

	"github.com/benbjohnson/refine"
)

func TestProgram_IsAddressTaken(t *testing.T) {
	prog := MustBuildProgram(t, "./testdata/addr_taken")
	once := refine.NewExecOnce(prog)

	for _, tt := range []struct {
		name      string
		addrTaken bool
		once      bool
	}{
		{"direct", false, true},
		{"apply", false, true},
		{"indirect", true, false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			fn := MustFindFunction(t, prog, tt.name)
			if got := prog.IsAddressTaken(fn); got != tt.addrTaken {
				t.Fatalf("IsAddressTaken()=%v, expected %v", got, tt.addrTaken)
			} else if got := prog.SingleCallSite(fn) != nil; got != !tt.addrTaken {
				t.Fatalf("SingleCallSite()=%v, expected %v", got, !tt.addrTaken)
			} else if got := once.FunctionOnce(fn); got != tt.once {
				t.Fatalf("FunctionOnce()=%v, expected %v", got, tt.once)
			}
		})
	}
}

// Direct calls in a program built with debug information do not count as
// uses of the callee.
func TestProgram_SingleCallSite(t *testing.T) {
	prog := MustBuildProgram(t, "./testdata/exec_once")
	main := MustFindFunction(t, prog, "main")

	for _, name := range []string{"once", "inc"} {
		fn := MustFindFunction(t, prog, name)
		if prog.IsAddressTaken(fn) {
			t.Fatalf("%s: unexpected address-taken", name)
		} else if site := prog.SingleCallSite(fn); site == nil {
			t.Fatalf("%s: expected single call site", name)
		} else if site.Parent() != main {
			t.Fatalf("%s: unexpected caller: %s", name, site.Parent())
		}
	}

	if site := prog.SingleCallSite(MustFindFunction(t, prog, "twice")); site != nil {
		t.Fatal("expected twice() to have two call sites")
	}
}
