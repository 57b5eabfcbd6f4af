package main

import cmd "github.com/kerbaras/docport/cmd/docport"

func main() {
	cmd.Execute()
}
