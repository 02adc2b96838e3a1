package main

import "github.com/rpattn/spanql/internal/cli"

func main() {
	cli.Execute()
}
