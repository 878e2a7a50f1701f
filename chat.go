package main

import (
	"log"
)

// Note: Port configuration lives in config.go
// Use HIGH_PORT_MODE=true environment variable for development

func main() {
	if err := InitializeCompletion(); err != nil {
		log.Fatalf("Completion setup failed: %v", err)
	}

	if err := InitAuditDB(); err != nil {
		log.Printf("WARNING: audit database unavailable: %v", err)
	}

	// SSH Server
	if SSH_PORT > 0 {
		go func() {
			if err := StartSSHServer(SSH_PORT); err != nil {
				log.Printf("SSH server failed: %v", err)
			}
		}()
	}

	// DNS Server
	if DNS_PORT > 0 {
		go func() {
			if err := StartDNSServer(DNS_PORT); err != nil {
				log.Printf("DNS server failed: %v", err)
			}
		}()
	}

	// HTTP/HTTPS Server
	// TODO: Implement graceful shutdown with signal handling
	if HTTPS_PORT > 0 {
		go func() {
			certPath, keyPath, found := findSSLCertificates()
			if !found {
				log.Printf("WARNING: SSL certificates not found, HTTPS disabled")
				log.Printf("Expected cert.pem and key.pem in working directory")
				return
			}
			StartHTTPSServer(HTTPS_PORT, certPath, keyPath)
		}()
	}

	if HTTP_PORT > 0 {
		log.Fatal(StartHTTPServer(HTTP_PORT))
	}

	// If only HTTPS is enabled, block forever
	select {}
}
