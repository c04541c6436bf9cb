package main

import "github.com/warden-hq/warden/cmd/warden/cmd"

func main() {
	cmd.Execute()
}
