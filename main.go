package main

import "github.com/schemakit/schemakit/cmd"

func main() {
	cmd.Execute()
}
