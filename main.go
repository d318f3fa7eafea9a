package main

import "github.com/jfmyers9/moodplayer/cmd"

func main() {
	cmd.Execute()
}
