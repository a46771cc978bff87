//go:build z3

package main

import "github.com/benbjohnson/refine/z3"

func init() {
	backends["z3"] = z3.Factory
}
