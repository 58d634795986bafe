package main

import "github.com/arkevo/collabcore/cmd"

func main() {
	cmd.Execute()
}
