package main

import "tunnelwatch/internal/client/cmd"

func main() {
	cmd.Execute()
}
