package main

import "github.com/FatmaElik/risk-map/internal/cmd"

func main() {
	cmd.Execute()
}
