package main

var (
	idx int
	arr [4]int
)

func main() {
	idx = 1
	arr[2] = 7
	i := idx
	arr[i] = 3
	x := arr[2]
	println(x)
}
