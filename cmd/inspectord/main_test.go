package main

import (
	"bytes"
	"net"
	"strconv"
	"testing"
)

func TestRunReturnsPortBindErrorOnOccupiedPort(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = listener.Close() }()
	port := listener.Addr().(*net.TCPAddr).Port

	root := t.TempDir()
	var stderr bytes.Buffer
	code := run([]string{
		"--host", "127.0.0.1",
		"--port", strconv.Itoa(port),
		"--root", root,
	}, &stderr)

	if code != exitPortBindError {
		t.Fatalf("exit code = %d, want %d; stderr=%s", code, exitPortBindError, stderr.String())
	}
}

func TestRunReturnsConfigErrorOnInvalidFlag(t *testing.T) {
	var stderr bytes.Buffer
	code := run([]string{"--port", "not-a-number"}, &stderr)
	if code != exitConfigError {
		t.Fatalf("exit code = %d, want %d", code, exitConfigError)
	}
}
