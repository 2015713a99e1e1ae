package main

import "screenlist/pkg/cli"

func main() {
	cli.Execute()
}
