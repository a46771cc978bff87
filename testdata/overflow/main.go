package main

func input() int

func main() {
	a := int8(input())
	b := a + 1
	println(a, b)
}
