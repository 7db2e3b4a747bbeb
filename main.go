package main

import "richsync/cmd"

func main() {
	cmd.Execute()
}
