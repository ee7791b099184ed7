package main

import "github.com/veilnet/veil-deploy/cmd/veil-update/cmd"

func main() {
	cmd.Execute()
}
