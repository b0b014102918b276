package main

import "github.com/datalyst/datalyst/cli"

func main() {
	cli.Execute()
}
