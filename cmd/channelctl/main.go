// Command channelctl runs ChannelBoard operations on document manifests.
package main

import "ChannelBoard/internal/cli"

func main() {
	cli.Execute()
}
