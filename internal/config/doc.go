// Package config loads gridwatch's TOML configuration.
//
// Load reads ~/.config/gridwatch/config.toml unless another path is given. A
// missing file yields Default(); blank or omitted fields keep their defaults;
// paths may start with ~. Durations are Go duration strings ("10m", "250ms").
//
//	api_base         = "127.0.0.1:7480"   # grid API to read from
//	listen           = "127.0.0.1:7480"   # address for `gridwatch mock`
//	cache_dir        = "~/.cache/gridwatch"
//	store            = "file"             # file, memory or redis
//	redis_addr       = "127.0.0.1:6379"
//	compress         = true               # zstd-compress the persisted snapshot
//	buster           = ""                 # change to invalidate persisted caches
//	retention        = "24h"
//	persist_debounce = "250ms"
//	page_size        = 5
//	delay_ms         = -1                 # server-side delay; -1 keeps the server default
//	log_path         = "~/.local/state/gridwatch/gridwatch.log"
//	log_level        = "info"
//	janitor_every    = "10m"
package config
