// Package sshsession provides the SSH/rsync primitives zone provisioning
// executors build on: a TCP readiness poll grounded on the teacher's
// health.TCPChecker, followed by subprocess ssh/rsync invocations driven
// through the same CommandRunner every other privileged operation uses.
package sshsession

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/makr91/zoneweaver-api/pkg/command"
)

// Credentials identifies the SSH user and key. KeyPath, when set, is
// passed to ssh and rsync as the identity file. Password is carried but
// not used: no password is supplied to ssh or rsync, so password-only
// authentication is not available.
type Credentials struct {
	Username string
	Password string
	KeyPath  string
}

// ExecResult is the outcome of a remote command execution.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// RsyncOptions configures a zone_sync transfer.
type RsyncOptions struct {
	Exclude []string
	Args    []string
	Delete  bool
	Owner   string
	Group   string
}

// Session drives ssh/rsync subprocesses against one zone. It never holds
// a persistent connection; every operation is a fresh subprocess, which
// is the teacher's own CommandRunner-everything idiom (pkg/network
// shells out to iptables rather than linking a library).
type Session struct {
	runner            *command.Runner
	provisioningRoot  string // base directory relative key paths resolve under
}

// New creates a Session. provisioningRoot is the zone's provisioning
// dataset mountpoint, used to resolve relative private-key paths.
func New(runner *command.Runner, provisioningRoot string) *Session {
	return &Session{runner: runner, provisioningRoot: provisioningRoot}
}

// resolveKeyPath returns creds.KeyPath unchanged if absolute, else joined
// under the zone's provisioning dataset.
func (s *Session) resolveKeyPath(creds Credentials) string {
	if creds.KeyPath == "" || filepath.IsAbs(creds.KeyPath) {
		return creds.KeyPath
	}
	return filepath.Join(s.provisioningRoot, creds.KeyPath)
}

// sshBaseArgs returns the shared ssh(1) flags: no host-key prompting, a
// sane connect timeout, and the resolved identity file when present.
func (s *Session) sshBaseArgs(ip string, port int, creds Credentials, timeout time.Duration) []string {
	args := []string{
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
		"-o", fmt.Sprintf("ConnectTimeout=%d", int(timeout.Seconds())),
		"-p", fmt.Sprintf("%d", port),
	}
	if key := s.resolveKeyPath(creds); key != "" {
		args = append(args, "-i", key)
	}
	user := creds.Username
	if user == "" {
		user = "root"
	}
	args = append(args, fmt.Sprintf("%s@%s", user, ip))
	return args
}

// WaitForReady polls until a TCP dial to ip:port succeeds and a
// subsequent "echo ready" round-trips over SSH, or timeout elapses.
func (s *Session) WaitForReady(ctx context.Context, ip string, port int, creds Credentials, timeout, interval time.Duration) error {
	deadline := time.Now().Add(timeout)
	addr := net.JoinHostPort(ip, fmt.Sprintf("%d", port))

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for %s to become ready after %s", addr, timeout)
		}

		if tcpDialSucceeds(ctx, addr, interval) {
			result, err := s.Exec(ctx, ip, port, creds, "echo ready", interval)
			if err == nil && result.ExitCode == 0 && strings.Contains(result.Stdout, "ready") {
				return nil
			}
		}

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func tcpDialSucceeds(ctx context.Context, addr string, timeout time.Duration) bool {
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Exec runs cmd on the remote host over SSH. ExitCode is 0 when the ssh
// command succeeds and 1 for any failure; the remote command's own exit
// status is not recovered.
func (s *Session) Exec(ctx context.Context, ip string, port int, creds Credentials, cmd string, timeout time.Duration) (ExecResult, error) {
	args := s.sshBaseArgs(ip, port, creds, timeout)
	full := fmt.Sprintf("ssh %s %s", strings.Join(args, " "), shellQuote(cmd))

	res := s.runner.Run(ctx, full, timeout)
	if res.Success {
		return ExecResult{ExitCode: 0, Stdout: res.Output}, nil
	}
	return ExecResult{ExitCode: 1, Stderr: res.Error, Stdout: res.Output}, fmt.Errorf("ssh exec failed: %s", res.Error)
}

// Rsync transfers src to dst over SSH using the host's rsync binary,
// pre-creating the destination directory and optionally chowning the
// destination tree afterward.
func (s *Session) Rsync(ctx context.Context, ip string, port int, creds Credentials, src, dst string, opts RsyncOptions, timeout time.Duration) error {
	mkdirArgs := s.sshBaseArgs(ip, port, creds, timeout)
	mkdirCmd := fmt.Sprintf("ssh %s %s", strings.Join(mkdirArgs, " "), shellQuote(fmt.Sprintf("sudo mkdir -p %s", dst)))
	if res := s.runner.Run(ctx, mkdirCmd, timeout); !res.Success {
		return fmt.Errorf("failed to pre-create destination %s: %s", dst, res.Error)
	}

	rsyncArgs := []string{"-az"}
	if opts.Delete {
		rsyncArgs = append(rsyncArgs, "--delete")
	}
	for _, pattern := range opts.Exclude {
		rsyncArgs = append(rsyncArgs, "--exclude", pattern)
	}
	rsyncArgs = append(rsyncArgs, opts.Args...)

	sshOpts := []string{
		"ssh", "-o", "StrictHostKeyChecking=no", "-o", "UserKnownHostsFile=/dev/null",
		"-p", fmt.Sprintf("%d", port),
	}
	if key := s.resolveKeyPath(creds); key != "" {
		sshOpts = append(sshOpts, "-i", key)
	}
	rsyncArgs = append(rsyncArgs, "-e", shellQuote(strings.Join(sshOpts, " ")))

	user := creds.Username
	if user == "" {
		user = "root"
	}
	remote := fmt.Sprintf("%s@%s:%s", user, ip, dst)
	cmd := fmt.Sprintf("rsync %s %s %s", strings.Join(rsyncArgs, " "), shellQuote(src), shellQuote(remote))

	if res := s.runner.Run(ctx, cmd, timeout); !res.Success {
		return fmt.Errorf("rsync failed: %s", res.Error)
	}

	if opts.Owner != "" || opts.Group != "" {
		owner := opts.Owner
		if opts.Group != "" {
			owner = fmt.Sprintf("%s:%s", owner, opts.Group)
		}
		chownArgs := s.sshBaseArgs(ip, port, creds, timeout)
		chownCmd := fmt.Sprintf("ssh %s %s", strings.Join(chownArgs, " "),
			shellQuote(fmt.Sprintf("sudo chown -R %s %s", owner, dst)))
		if res := s.runner.Run(ctx, chownCmd, timeout); !res.Success {
			return fmt.Errorf("post-sync chown failed: %s", res.Error)
		}
	}

	return nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// keyFileExists reports whether a configured key path exists on disk; an
// empty path counts as present. Nothing in this repository calls it.
func keyFileExists(path string) bool {
	if path == "" {
		return true
	}
	_, err := os.Stat(path)
	return err == nil
}
