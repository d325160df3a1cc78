package main

import "github.com/momentics/hioload-bench/cmd"

func main() {
	cmd.Execute()
}
