package main

import "github.com/carlookout/server/cmd/server/cmd"

func main() {
	cmd.Execute()
}
