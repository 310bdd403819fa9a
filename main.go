package main

import (
	"Sonora/cmd"
)

func main() {
	cmd.Execute()
}
