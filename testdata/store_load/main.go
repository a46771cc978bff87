package main

var g int

func main() {
	g = 5
	x := g
	y := x + 2
	println(x, y)
}
