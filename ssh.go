package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

const sshBanner = "gemchat - ask anything, one question per line (Ctrl-C to leave)\r\n"

// hostKeySigner loads the host key from host_key (PKCS8 PEM). If the file
// is missing, a fresh ed25519 key is generated and persisted so returning
// clients don't see changed-key warnings.
func hostKeySigner() (ssh.Signer, error) {
	if data, err := os.ReadFile("host_key"); err == nil {
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse host_key: %w", err)
		}
		return signer, nil
	}

	log.Println("[SSH] No host_key file, generating ed25519 host key")
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	if der, err := x509.MarshalPKCS8PrivateKey(priv); err == nil {
		block := &pem.Block{Type: "PRIVATE KEY", Bytes: der}
		if err := os.WriteFile("host_key", pem.EncodeToMemory(block), 0600); err != nil {
			log.Printf("[SSH] Could not persist host_key: %v", err)
		}
	}
	return ssh.NewSignerFromKey(priv)
}

func StartSSHServer(port int) error {
	signer, err := hostKeySigner()
	if err != nil {
		return fmt.Errorf("no SSH host key: %w", err)
	}

	config := &ssh.ServerConfig{
		NoClientAuth: true,
	}
	config.AddHostKey(signer)

	addr := fmt.Sprintf(":%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Printf("[SSH] Listening on %s", addr)

	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Printf("[SSH] Accept failed: %v", err)
			continue
		}
		go handleSSHConn(conn, config)
	}
}

func handleSSHConn(c net.Conn, config *ssh.ServerConfig) {
	sconn, chans, reqs, err := ssh.NewServerConn(c, config)
	if err != nil {
		c.Close()
		return
	}
	defer sconn.Close()
	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			continue
		}
		go handleSSHSession(channel, requests)
	}
}

// handleSSHSession supports two modes: `ssh host "question"` answers once
// via the exec request, an interactive shell answers a question per line.
func handleSSHSession(channel ssh.Channel, requests <-chan *ssh.Request) {
	defer channel.Close()

	for req := range requests {
		switch req.Type {
		case "exec":
			// Payload: uint32 length + command bytes
			question := ""
			if len(req.Payload) > 4 {
				question = string(req.Payload[4:])
			}
			req.Reply(true, nil)
			answerTo(channel, question)
			sendExitStatus(channel)
			return
		case "shell", "pty-req":
			req.Reply(true, nil)
			if req.Type == "shell" {
				runSSHShell(channel)
				sendExitStatus(channel)
				return
			}
		default:
			req.Reply(false, nil)
		}
	}
}

func runSSHShell(channel ssh.Channel) {
	fmt.Fprint(channel, sshBanner)
	for {
		fmt.Fprint(channel, "> ")
		line, ok := readLine(channel)
		if !ok {
			return
		}
		answerTo(channel, line)
	}
}

// readLine assembles one line from a raw pty stream, echoing as it goes.
// Handles backspace and Ctrl-C/Ctrl-D; anything fancier is on the client.
func readLine(channel ssh.Channel) (string, bool) {
	var line []byte
	buf := make([]byte, 256)
	for {
		n, err := channel.Read(buf)
		if err != nil {
			return "", false
		}
		for _, b := range buf[:n] {
			switch b {
			case '\r', '\n':
				fmt.Fprint(channel, "\r\n")
				return string(line), true
			case 0x03, 0x04: // Ctrl-C, Ctrl-D
				fmt.Fprint(channel, "\r\n")
				return "", false
			case 0x7f, 0x08: // backspace
				if len(line) > 0 {
					line = line[:len(line)-1]
					fmt.Fprint(channel, "\b \b")
				}
			default:
				line = append(line, b)
				channel.Write([]byte{b})
			}
		}
	}
}

func answerTo(channel ssh.Channel, question string) {
	question = strings.TrimSpace(question)
	if question == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	answer, err := getResponse(ctx, question)
	if err != nil {
		fmt.Fprintf(channel, "Error: %s\r\n", err.Error())
		return
	}
	fmt.Fprint(channel, strings.ReplaceAll(answer, "\n", "\r\n")+"\r\n")
}

func sendExitStatus(channel ssh.Channel) {
	// uint32 exit status 0
	channel.SendRequest("exit-status", false, []byte{0, 0, 0, 0})
}
