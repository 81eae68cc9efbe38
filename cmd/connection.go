// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"
)

// pollInterval bounds every blocking read so the engine can observe
// cancellation between reads
const pollInterval = 100 * time.Millisecond

// Connection provides a common interface for reading/writing bytes from
// serial, TCP or WebSocket. Read returns (0, nil) when no data arrived
// within pollInterval.
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	// go.bug.st/serial returns (0, nil) when the read timeout expires
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// TCPConnection wraps a raw TCP stream, typically a serial-over-IP bridge
type TCPConnection struct {
	conn net.Conn
}

func (t *TCPConnection) Read(p []byte) (int, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
		return 0, err
	}
	n, err := t.conn.Read(p)
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return n, nil
	}
	return n, err
}

func (t *TCPConnection) Write(p []byte) (int, error) {
	return t.conn.Write(p)
}

func (t *TCPConnection) Close() error {
	return t.conn.Close()
}

// ErrConnectionClosed is returned when reading from a closed WebSocket
// connection. It wraps io.EOF.
var ErrConnectionClosed = fmt.Errorf("websocket connection closed: %w", io.EOF)

// WebSocketConnection wraps a WebSocket connection for byte-level reading.
// A reader goroutine feeds binary messages into a channel so Read can give
// up after pollInterval.
type WebSocketConnection struct {
	conn     *websocket.Conn
	messages chan []byte
	err      error // valid once messages is closed
	buf      []byte
}

func newWebSocketConnection(conn *websocket.Conn) *WebSocketConnection {
	w := &WebSocketConnection{
		conn:     conn,
		messages: make(chan []byte, 16),
	}
	go w.readLoop()
	return w
}

func (w *WebSocketConnection) readLoop() {
	defer close(w.messages)
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.err = err
			return
		}
		// Bootstrap frames travel as binary messages only
		if messageType != websocket.BinaryMessage {
			continue
		}
		w.messages <- data
	}
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	// Return buffered data from the last message first
	if len(w.buf) > 0 {
		n := copy(p, w.buf)
		w.buf = w.buf[n:]
		return n, nil
	}

	select {
	case data, ok := <-w.messages:
		if !ok {
			if w.err != nil && !websocket.IsCloseError(w.err, websocket.CloseNormalClosure) {
				return 0, fmt.Errorf("%w (%v)", ErrConnectionClosed, w.err)
			}
			return 0, ErrConnectionClosed
		}
		n := copy(p, data)
		w.buf = data[n:]
		return n, nil
	case <-time.After(pollInterval):
		return 0, nil
	}
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	err := w.conn.WriteMessage(websocket.BinaryMessage, p)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConnection) Close() error {
	return w.conn.Close()
}

// OpenSerialConnection opens a serial port connection (8N1)
func OpenSerialConnection(portName string, baudRate int) (Connection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(pollInterval); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", portName, err)
	}

	return &SerialConnection{port: port}, nil
}

// OpenTCPConnection connects to a host:port serial bridge
func OpenTCPConnection(address string) (Connection, error) {
	conn, err := net.DialTimeout("tcp", address, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	return &TCPConnection{conn: conn}, nil
}

// OpenWebSocketConnection opens a WebSocket connection with HTTP Basic auth
func OpenWebSocketConnection(wsURL, username, password string, skipSSLVerify bool) (Connection, error) {
	// Parse and validate URL
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	// Configure TLS for wss://
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return newWebSocketConnection(conn), nil
}

// GetPassword retrieves the WebSocket password from the environment or
// prompts for it
func GetPassword() (string, error) {
	if pw := os.Getenv("FWU_PASSWORD"); pw != "" {
		return pw, nil
	}
	return readSecret("Password: ")
}

// readSecret prompts on stderr and reads a line without echo
func readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	secret, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if stdin is not a terminal
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(line), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(secret), nil
}

// isTCPAddress reports whether port names a host:port instead of a device
func isTCPAddress(port string) bool {
	if strings.HasPrefix(port, "/") || strings.HasPrefix(strings.ToUpper(port), "COM") {
		return false
	}
	_, _, err := net.SplitHostPort(port)
	return err == nil
}

// OpenConnection opens a serial, TCP or WebSocket connection based on flags
func OpenConnection() (Connection, string, error) {
	if wsURL != "" {
		password := ""
		if wsUsername != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		conn, err := OpenWebSocketConnection(wsURL, wsUsername, password, wsNoSSLVerify)
		if err != nil {
			return nil, "", err
		}

		return conn, fmt.Sprintf("WebSocket: %s", wsURL), nil
	}

	if portName != "" {
		if isTCPAddress(portName) {
			conn, err := OpenTCPConnection(portName)
			if err != nil {
				return nil, "", err
			}
			return conn, fmt.Sprintf("TCP: %s", portName), nil
		}

		conn, err := OpenSerialConnection(portName, baudRate)
		if err != nil {
			return nil, "", err
		}

		return conn, fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified")
}
