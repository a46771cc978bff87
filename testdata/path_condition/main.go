package main

func input() int

func main() {
	x := input()
	if x > 10 {
		y := x - 1
		println(y)
	}
}
