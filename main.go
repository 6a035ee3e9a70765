package main

import "github.com/jaedolph/scct-predictions/cmd"

func main() {
	cmd.Execute()
}
