package main

import "github.com/nfrund/topicbridge/cmd/topicbridge/cmd"

func main() {
	cmd.Execute()
}
