package main

import "github.com/ValentinKolb/dMsg/cmd"

func main() {
	cmd.Execute()
}
