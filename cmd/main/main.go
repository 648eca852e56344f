package main

import "github.com/amberdev/bangumi-harvest/cmd"

func main() {
	cmd.Execute()
}
