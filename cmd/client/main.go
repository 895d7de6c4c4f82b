package main

import "salesmanager/cmd/client/cmd"

func main() {
	cmd.Execute()
}
