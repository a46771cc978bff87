package main

var buf []int

func double(v int) int {
	return v * 2
}

func main() {
	r := double(21)
	n := len(buf)
	println(r, n)
}
