// Package catalog implements a file backed link.ConfigProvider.
//
// The instrument catalog is a TOML or YAML document selected by file
// extension (.toml, .yaml, .yml). Each entry describes one instrument:
//
//	[[instrument]]
//	id = "cobas-1"
//	conn_type = "tcp-client"
//	host = "10.0.0.12"
//	port = 5000
//	protocol = "astm"
//	read_timeout = "5s"
//
// Watch reloads the catalog whenever the file changes and reports the new
// snapshot through a callback, typically wired to supervisor.Manager.Reload.
package catalog
