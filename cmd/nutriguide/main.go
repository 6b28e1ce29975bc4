package main

import "nutriguide/internal/cli"

func main() {
	cli.Execute()
}
