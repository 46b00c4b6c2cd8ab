// Package config provides configuration for the relay server.
//
// Configuration is layered:
//   - Default() supplies working values for a local-network relay
//   - LoadFile overlays a JSON file
//   - Command-line flags and environment variables (applied by main) win last
//
// Modes:
//
// A "local" relay runs next to the scoreboard on the venue network and drops
// a match snapshot as soon as nobody is watching it. A "cloud" relay keeps
// snapshots when rooms empty so tablets can reconnect later.
//
// Usage:
//
//	cfg := config.Default()
//	if err := cfg.LoadFile("relay.json"); err != nil {
//		log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
package config
