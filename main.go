package main

import "github.com/lepinkainen/bookbrief/cmd"

var execute = cmd.Execute

func main() {
	execute()
}
