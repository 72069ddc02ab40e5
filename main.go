package main

import "github.com/FluidXR/untether/cmd"

func main() {
	cmd.Execute()
}
