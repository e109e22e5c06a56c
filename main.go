package main

import "github.com/oar-cd/hound/cmd/root"

func main() {
	root.Execute()
}
