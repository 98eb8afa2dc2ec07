// Package sockopt tunes kernel socket buffer sizes on the UDP socket used by
// the protocol core. Buffer sizing is platform-specific; see
// sockopt_unix.go and sockopt_other.go for the build-tagged implementations.
package sockopt
