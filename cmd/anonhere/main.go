package main

import "github.com/mcoot/anonhere/internal/cli"

func main() {
	cli.Execute()
}
