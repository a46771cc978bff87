package main

func direct() int { return 1 }

func indirect() int { return 2 }

func apply(f func() int) int { return f() }

func main() {
	a := direct()
	b := apply(indirect)
	println(a, b)
}
