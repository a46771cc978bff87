package main

type T struct {
	A    int8
	B, C int
	D    int32
}

func main() {
	var t T
	t.A = 5
	t.B = 2
	t.C = 7
	t.D = 8
	a, c := t.A, t.C
	println(a, c, t.D)
}
