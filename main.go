package main

import "github.com/truemediaorg/mentionbot/cmd"

func main() {
	cmd.Execute()
}
