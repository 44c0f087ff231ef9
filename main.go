package main

import "github.com/ValentinKolb/aodb/cmd"

func main() {
	cmd.Execute()
}
