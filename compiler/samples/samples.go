// Package samples holds canonical Plume programs built directly as syntax
// trees. Each constructor returns a fresh, unresolved tree.
package samples

import (
	"sort"

	c "github.com/chazu/plume/compiler"
	"github.com/chazu/plume/pkg/symbols"
)

// Sample describes a program and the output it is expected to print.
type Sample struct {
	Name        string
	Description string
	Build       func() *c.Program

	// Output is the expected println output, one entry per line. Empty for
	// programs that do not compile.
	Output []string
	// Valid is false for programs that must fail resolution.
	Valid bool
}

var registry = map[string]Sample{}

func register(s Sample) {
	registry[s.Name] = s
}

// Get returns the named sample.
func Get(name string) (Sample, bool) {
	s, ok := registry[name]
	return s, ok
}

// Names returns all sample names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// All returns every sample, sorted by name.
func All() []Sample {
	out := make([]Sample, 0, len(registry))
	for _, n := range Names() {
		out = append(out, registry[n])
	}
	return out
}

func init() {
	register(Sample{
		Name:        "sum",
		Description: "function main(){ let a = 1; let b = 2; println(a + b); } main();",
		Build:       Sum,
		Output:      []string{"3"},
		Valid:       true,
	})
	register(Sample{
		Name:        "factorial",
		Description: "recursive factorial of 10",
		Build:       Factorial,
		Output:      []string{"3628800"},
		Valid:       true,
	})
	register(Sample{
		Name:        "count",
		Description: "for (let i = 0; i < 3; i++) println(i);",
		Build:       Count,
		Output:      []string{"0", "1", "2"},
		Valid:       true,
	})
	register(Sample{
		Name:        "undeclared",
		Description: "a call to a function that does not exist",
		Build:       Undeclared,
		Valid:       false,
	})
	register(Sample{
		Name:        "fibonacci",
		Description: "recursive and iterative fibonacci numbers",
		Build:       Fibonacci,
		Output:      []string{"0", "1", "1", "2", "3", "5", "8", "13", "21", "34", "6765"},
		Valid:       true,
	})
	register(Sample{
		Name:        "fizzbuzz",
		Description: "fizzbuzz up to 15 with string building",
		Build:       FizzBuzz,
		Output: []string{
			"1", "2", "Fizz", "4", "Buzz", "Fizz", "7", "8", "Fizz", "Buzz",
			"11", "Fizz", "13", "14", "FizzBuzz",
		},
		Valid: true,
	})
	register(Sample{
		Name:        "nested",
		Description: "nested loops, early return and short-circuit conditions",
		Build:       Nested,
		Output:      []string{"0:1", "1:0", "1:2", "2:1", "first 6", "-7"},
		Valid:       true,
	})
}

// Sum is a function main declaring two locals and printing their sum,
// followed by a top-level call to it.
func Sum() *c.Program {
	return c.Prog(
		c.Func("main", nil,
			c.Let("a", c.Int(1)),
			c.Let("b", c.Int(2)),
			c.Println(c.Bin(c.Var("a"), "+", c.Var("b"))),
		),
		c.Do(c.Call("main")),
	)
}

// Factorial prints and returns factorial(10).
func Factorial() *c.Program {
	return c.Prog(
		c.TypedFunc("factorial", []*c.VariableDecl{c.Param("n", symbols.Integer)}, symbols.Integer,
			c.If(c.Bin(c.Var("n"), "<=", c.Int(1)),
				c.Return(c.Int(1)),
				nil),
			c.Return(c.Bin(c.Var("n"), "*", c.Call("factorial", c.Bin(c.Var("n"), "-", c.Int(1))))),
		),
		c.Let("result", c.Call("factorial", c.Int(10))),
		c.Println(c.Var("result")),
		c.Return(c.Var("result")),
	)
}

// Count prints 0, 1 and 2 from a for loop.
func Count() *c.Program {
	return c.Prog(
		c.For(
			c.Let("i", c.Int(0)),
			c.Bin(c.Var("i"), "<", c.Int(3)),
			c.Inc("i", false),
			c.Println(c.Var("i")),
		),
	)
}

// Undeclared calls a function that is neither declared nor built in.
func Undeclared() *c.Program {
	return c.Prog(
		c.Let("x", c.Int(1)),
		c.At(c.Do(c.At(c.Call("frobnicate", c.Var("x")), 2, 1)), 2, 1),
	)
}

// Fibonacci prints fib(0..9) recursively, then fib(20) iteratively.
func Fibonacci() *c.Program {
	return c.Prog(
		c.Func("fib", []string{"n"},
			c.If(c.Bin(c.Var("n"), "<", c.Int(2)), c.Return(c.Var("n")), nil),
			c.Return(c.Bin(
				c.Call("fib", c.Bin(c.Var("n"), "-", c.Int(1))),
				"+",
				c.Call("fib", c.Bin(c.Var("n"), "-", c.Int(2))),
			)),
		),
		c.Func("fibIter", []string{"n"},
			c.Let("a", c.Int(0)),
			c.Let("b", c.Int(1)),
			c.For(c.Let("i", c.Int(0)), c.Bin(c.Var("i"), "<", c.Var("n")), c.Inc("i", true),
				c.Body(
					c.Let("t", c.Bin(c.Var("a"), "+", c.Var("b"))),
					c.Do(c.Assign("a", "=", c.Var("b"))),
					c.Do(c.Assign("b", "=", c.Var("t"))),
				),
			),
			c.Return(c.Var("a")),
		),
		c.For(c.Let("k", c.Int(0)), c.Bin(c.Var("k"), "<", c.Int(10)), c.Inc("k", false),
			c.Println(c.Call("fib", c.Var("k"))),
		),
		c.Println(c.Call("fibIter", c.Int(20))),
	)
}

// FizzBuzz builds each line as a string before printing it.
func FizzBuzz() *c.Program {
	return c.Prog(
		c.For(c.Let("i", c.Int(1)), c.Bin(c.Var("i"), "<=", c.Int(15)), c.Inc("i", false),
			c.Body(
				c.Let("s", c.Str("")),
				c.If(c.Bin(c.Bin(c.Var("i"), "%", c.Int(3)), "==", c.Int(0)),
					c.Do(c.Assign("s", "+=", c.Str("Fizz"))), nil),
				c.If(c.Bin(c.Bin(c.Var("i"), "%", c.Int(5)), "==", c.Int(0)),
					c.Do(c.Assign("s", "+=", c.Str("Buzz"))), nil),
				c.If(c.Bin(c.Var("s"), "==", c.Str("")),
					c.Println(c.Call(symbols.IntegerToStringName, c.Var("i"))),
					c.Println(c.Var("s"))),
			),
		),
	)
}

// Nested prints the coordinates of an odd-sum grid, finds the first multiple
// of 6 above 4 with an early return, and prints a negated expression.
func Nested() *c.Program {
	return c.Prog(
		c.Func("firstMultiple", []string{"n", "from"},
			c.For(c.Let("x", c.Var("from")), nil, c.Inc("x", false),
				c.If(c.Bin(c.Bin(c.Var("x"), "%", c.Var("n")), "==", c.Int(0)),
					c.Return(c.Var("x")), nil),
			),
		),
		c.For(c.Let("i", c.Int(0)), c.Bin(c.Var("i"), "<", c.Int(3)), c.Inc("i", false),
			c.For(c.Let("j", c.Int(0)), c.Bin(c.Var("j"), "<", c.Int(3)), c.Inc("j", false),
				c.If(
					c.Bin(
						c.Bin(c.Bin(c.Bin(c.Var("i"), "+", c.Var("j")), "%", c.Int(2)), "==", c.Int(1)),
						"&&",
						c.Bin(c.Bin(c.Var("i"), "<", c.Int(2)), "||", c.Bin(c.Var("j"), "==", c.Int(1))),
					),
					c.Println(c.Bin(
						c.Bin(c.Call(symbols.IntegerToStringName, c.Var("i")), "+", c.Str(":")),
						"+",
						c.Call(symbols.IntegerToStringName, c.Var("j")),
					)),
					nil,
				),
			),
		),
		c.Println(c.Bin(c.Str("first "), "+", c.Call("firstMultiple", c.Int(6), c.Int(4)))),
		c.Println(c.Neg(c.Bin(c.Int(3), "+", c.Int(4)))),
	)
}
