package main

import "github.com/metergrid/metergrid/internal/cli"

func main() {
	cli.Execute()
}
