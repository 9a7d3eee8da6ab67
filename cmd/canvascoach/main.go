package main

import "github.com/felixgeelhaar/canvascoach/cmd/canvascoach/cli"

func main() {
	cli.Execute()
}
