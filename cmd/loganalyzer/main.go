package main

import "loganalyzer/internal/cli"

func main() {
	cli.Execute()
}
