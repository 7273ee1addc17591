// main.go - Command entry point
package main

import "github.com/valpere/tile_imagery/cmd"

func main() {
	cmd.Execute()
}
