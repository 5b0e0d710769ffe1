package main

import "DiscBox/cmd"

func main() {
	cmd.Execute()
}
