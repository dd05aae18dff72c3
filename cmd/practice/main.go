// Command practice is a terminal metronome and guitar tuner.
package main

func main() {
	Execute()
}
