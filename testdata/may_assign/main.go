package main

func input() int

var g int

func main() {
	if input() > 0 {
		g = 1
	} else {
		g = 2
	}
	x := g
	println(x)
}
