package main

func once() int { return 1 }

func twice() int { return 2 }

func looped() {}

func never() {}

func inc(v int) int { return v + 1 }

func main() {
	a := once()
	b := twice()
	c := twice()
	for i := 0; i < a; i++ {
		looped()
	}
	d := inc(b)
	println(a, b, c, d)
}
