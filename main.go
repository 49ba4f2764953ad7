package main

import "github.com/KaramelBytes/assayfit-cli/cmd"

func main() {
	cmd.Execute()
}
