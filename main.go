package main

import "github.com/evermod/everctl/cmd"

func main() {
	cmd.Execute()
}
