package main

import (
	"MixGrid/cmd"
)

func main() {
	cmd.Execute()
}
