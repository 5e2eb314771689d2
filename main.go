package main

import "github.com/theirongolddev/praxis/cmd"

func main() {
	cmd.Execute()
}
