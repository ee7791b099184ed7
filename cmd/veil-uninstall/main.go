package main

import "github.com/veilnet/veil-deploy/cmd/veil-uninstall/cmd"

func main() {
	cmd.Execute()
}
