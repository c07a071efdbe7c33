package main

import "github.com/gortc/mediaport/internal/cli"

func main() {
	cli.Execute()
}
