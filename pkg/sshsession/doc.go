/*
Package sshsession implements the three SSH primitives zone provisioning
executors share: WaitForReady (TCP dial poll + echo-ready handshake),
Exec (remote command; exit code 0 on success, 1 on any failure), and Rsync (destination
pre-create, transfer, optional chown).

Every primitive shells out through pkg/command.Runner rather than linking
an SSH client library, consistent with how the teacher's pkg/network
drives iptables as a subprocess instead of a library binding. Relative
private-key paths resolve under the zone's provisioning dataset
mountpoint, matching the per-zone layout zone_provisioning_extract
creates.
*/
package sshsession
