// Package model provides the data structures of the pipeline package.
// It defines nodes, ports and connections, the closed enumerations of node and port types,
// the catalogue describing the ports and settings of every node type, and the tagged-union
// values used for node configuration.
package model
