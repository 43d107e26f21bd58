package main

import "avulto/internal/cli"

func main() {
	cli.Execute()
}
