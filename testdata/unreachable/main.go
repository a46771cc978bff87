package main

func input() int

func main() {
	n := input()
	if n < 0 {
		panic("negative")
	}
	println(n)
}
