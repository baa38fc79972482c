package main

import "github.com/ValentinKolb/scired/cmd"

func main() {
	cmd.Execute()
}
