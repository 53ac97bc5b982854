package main

import "github.com/icastillejo/practice-management/cmd"

func main() {
	cmd.Execute()
}
