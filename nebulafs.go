package main

import (
	"github.com/nebulafs/nebulafs/cmd"
)

func main() {
	cmd.Execute()
}
