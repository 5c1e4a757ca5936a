package main

import "chainlend-backend/cmd/lendingd/commands"

func main() {
	commands.Execute()
}
