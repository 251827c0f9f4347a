// Copyright (c) 2025 Authkit
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package httperrors provides user-friendly error handling for HTTP requests.
package httperrors

import (
	"errors"
	"net"
	"net/url"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
)

// Class is the category of a transport failure.
type Class int

const (
	ClassGeneric Class = iota
	ClassTimeout
	ClassDNS
	ClassConnectionRefused
	ClassTLS
)

// Classify detects common network error types.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassGeneric
	case isTimeoutError(err):
		return ClassTimeout
	case isDNSError(err):
		return ClassDNS
	case isConnectionRefusedError(err):
		return ClassConnectionRefused
	case isSSLError(err):
		return ClassTLS
	}
	return ClassGeneric
}

// Describe converts a technical HTTP/network error into a one-line message
// fit for showing to the user.
func Describe(err error) string {
	switch Classify(err) {
	case ClassTimeout:
		return "The authentication service took too long to respond. Please try again."
	case ClassDNS:
		return "Cannot resolve the authentication service address. Check your connection."
	case ClassConnectionRefused:
		return "The authentication service is not accepting connections. Please try again later."
	case ClassTLS:
		return "Secure connection to the authentication service failed."
	}
	return "Cannot connect to the authentication service. Check your internet connection."
}

// Show displays troubleshooting hints for a transport failure that happened
// while doing context (e.g. "logging in").
func Show(err error, context string) {
	switch Classify(err) {
	case ClassTimeout:
		pterm.Printf("⏱️  Connection timeout while %s\n", context)
		pterm.Println()
		pterm.Println("The server took too long to respond. This could mean:")
		pterm.Println("  • Slow internet connection")
		pterm.Println("  • Server is under heavy load")
		pterm.Println("  • Network firewall is blocking the connection")
	case ClassDNS:
		pterm.Printf("🌐 Cannot resolve server address while %s\n", context)
		pterm.Println()
		pterm.Println("Please check:")
		pterm.Println("  • Your internet connection is working")
		pterm.Println("  • DNS settings are correct")
	case ClassConnectionRefused:
		pterm.Printf("🚫 Connection refused while %s\n", context)
		pterm.Println()
		pterm.Println("The server is not accepting connections. This could mean:")
		pterm.Println("  • The service is temporarily down")
		pterm.Println("  • Wrong server address or port")
	case ClassTLS:
		pterm.Printf("🔒 Secure connection failed while %s\n", context)
		pterm.Println()
		pterm.Println("Try:")
		pterm.Println("  • Check your system date and time")
		pterm.Println("  • Verify network proxy settings")
	default:
		pterm.Printf("❌ Cannot connect to the authentication service while %s\n", context)
		pterm.Println()
		pterm.Println("Please check your internet connection and firewall settings.")
		if err != nil {
			details := err.Error()
			if len(details) > 100 {
				details = details[:100] + "..."
			}
			pterm.Debug.Printf("Technical details: %s\n", details)
		}
	}
	pterm.Println()
}

// isTimeoutError checks if the error is a timeout error.
func isTimeoutError(err error) bool {
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}

// isDNSError checks if the error is a DNS resolution error.
func isDNSError(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// isConnectionRefusedError checks if the error is a connection refused error.
func isConnectionRefusedError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "connection refused")
}

// isSSLError checks if the error is an SSL/TLS error.
func isSSLError(err error) bool {
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "tls") ||
		strings.Contains(errStr, "ssl") ||
		strings.Contains(errStr, "certificate") ||
		strings.Contains(errStr, "handshake")
}

// ExtractHostFromURL extracts the hostname from a URL for error messages.
func ExtractHostFromURL(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Host == "" {
		return "server"
	}
	return u.Host
}
