package main

import "github.com/RyanBlaney/mic-spectrum/cmd"

func main() {
	cmd.Execute()
}
