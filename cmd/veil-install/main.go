package main

import "github.com/veilnet/veil-deploy/cmd/veil-install/cmd"

func main() {
	cmd.Execute()
}
