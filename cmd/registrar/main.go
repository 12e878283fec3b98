package main

import "github.com/turbolytics/registrar/internal/cmd"

func main() {
	cmd.Execute()
}
