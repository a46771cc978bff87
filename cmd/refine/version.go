package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var (
	BuildVersion string
	BuildTime    string
)

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "show version",
	Run: func(*cobra.Command, []string) {
		version := BuildVersion
		if version == "" {
			if info, ok := debug.ReadBuildInfo(); ok {
				version = info.Main.Version
			}
		}
		fmt.Printf("%-14s %s\n", "version", version)
		if BuildTime != "" {
			fmt.Printf("%-14s %s\n", "build time", BuildTime)
		}
	},
}
