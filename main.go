package main

import "github.com/schovi/screenrec/cmd"

func main() {
	cmd.Execute()
}
