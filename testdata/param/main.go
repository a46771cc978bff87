package main

func input() int

func main() {
	x := int8(input())
	z := callee(x, 3)
	println(z)
}

func callee(a int8, b int16) int32 {
	x := int32(a) * int32(b)
	if x > 10 {
		return x + 1
	}
	return x - 1
}
