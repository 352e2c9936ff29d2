package main

import "github.com/dcastillo/soltrade/cmd"

func main() {
	cmd.Execute()
}
