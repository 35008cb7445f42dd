package main

import "github.com/Togather-Foundation/checkin/cmd/server/cmd"

func main() {
	cmd.Execute()
}
