package main

import "homescore/internal/cli"

func main() {
	cli.Execute()
}
