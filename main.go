package main

import "github.com/KaramelBytes/crimeloom/cmd"

func main() {
	cmd.Execute()
}
