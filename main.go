package main

import "rcubed-backend/cmd"

func main() {
	cmd.Run()
}
