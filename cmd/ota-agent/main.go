// Command ota-agent keeps a single-host edge device on the latest
// signed application build.
package main

import "github.com/iot-ota/edge-agent/cmd/ota-agent/cmd"

func main() {
	cmd.Execute()
}
