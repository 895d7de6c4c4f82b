package main

import "salesmanager/cmd/server/cmd"

func main() {
	cmd.Execute()
}
