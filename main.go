package main

import "prospect/cmd"

func main() {
	cmd.Execute()
}
