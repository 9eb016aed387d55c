package bytecode

import (
	"fmt"
	"strconv"

	"github.com/chazu/plume/pkg/symbols"
)

// NativeFunc implements a built-in. args are in declaration order. The
// returned value is pushed only when the built-in's type returns a value.
type NativeFunc func(vm *VM, args []Value) (Value, FailureCode)

// nativeImpls holds the Go implementation of each standard built-in.
var nativeImpls = map[string]NativeFunc{
	symbols.PrintlnName:         nativePrintln,
	symbols.TickName:            nativeTick,
	symbols.IntegerToStringName: nativeIntegerToString,
}

func nativePrintln(vm *VM, args []Value) (Value, FailureCode) {
	fmt.Fprintln(vm.out, args[0].String())
	return Undefined, FailNone
}

func nativeTick(vm *VM, _ []Value) (Value, FailureCode) {
	return Int(vm.clock().UTC().UnixMilli()), FailNone
}

func nativeIntegerToString(_ *VM, args []Value) (Value, FailureCode) {
	n, ok := args[0].AsInt()
	if !ok {
		return Undefined, FailTypeMismatch
	}
	return Str(strconv.FormatInt(n, 10)), FailNone
}

// bindNatives maps every built-in of the table to its implementation. Built-ins
// without one are left unbound; calling them fails with FailMissingBody.
func bindNatives(table *symbols.BuiltinTable) map[*symbols.FunctionSymbol]NativeFunc {
	natives := make(map[*symbols.FunctionSymbol]NativeFunc, table.Len())
	for _, b := range table.All() {
		if impl, ok := nativeImpls[b.Name()]; ok {
			natives[b] = impl
		}
	}
	return natives
}
