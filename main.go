package main

import "github.com/ozkatz/zipedit/cmd"

func main() {
	cmd.Execute()
}
