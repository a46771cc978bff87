//go:build yices

package main

import "github.com/benbjohnson/refine/yices"

func init() {
	backends["yices"] = yices.Factory
}
