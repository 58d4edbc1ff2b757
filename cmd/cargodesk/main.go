package main

import "github.com/cargodesk/cargodesk/pkg/cli"

func main() {
	cli.Execute()
}
