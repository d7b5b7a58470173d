// Package executors implements the Handler Registry's concrete operations:
// zpool and address management, zone provisioning over SSH/rsync, system
// update control, host lifecycle, local account management, and host
// monitoring. Every handler decodes its task metadata into a typed params
// struct, validates it, and shells out through command.Runner — none of
// them touch /dev/* or illumos libraries directly.
//
// Register wires every handler into a *registry.Registry with its default
// priority, timeout, and concurrency policy (Serial or PerZoneExclusive).
package executors
