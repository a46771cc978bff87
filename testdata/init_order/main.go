package main

var x = 1
var y = x + 1

func main() {
	a := y
	x = 3
	b := x
	println(a, b)
}
