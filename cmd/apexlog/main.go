package main

import "github.com/SteelMorgan/apex-log-checker/internal/cmd"

func main() {
	cmd.Execute()
}
