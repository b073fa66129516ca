package main

import "github.com/sysmaint/pvemaint/cmd"

func main() {
	cmd.Execute()
}
