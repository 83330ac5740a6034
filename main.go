package main

import "github.com/ethpandaops/tx-event-processor/cmd"

func main() {
	cmd.Execute()
}
