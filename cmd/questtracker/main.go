package main

import "github.com/SakuraBurst/questtracker/cmd/questtracker/root"

func main() {
	root.Execute()
}
