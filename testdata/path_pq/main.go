package main

func input() int

var p, q int

func main() {
	c := input() > 0
	if c {
		p = 1
	} else {
		q = 2
	}
	loaded := p
	println(loaded)
}
