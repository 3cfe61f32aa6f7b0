package main

import "github.com/ValentinKolb/jstore/cmd"

func main() {
	cmd.Execute()
}
