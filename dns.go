package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// dnsZone is the zone queries are trimmed against, e.g. "gemchat.example."
var dnsZone = getDNSZone()

func getDNSZone() string {
	zone := os.Getenv("DNS_ZONE")
	if zone == "" {
		return "."
	}
	if !strings.HasSuffix(zone, ".") {
		zone += "."
	}
	return zone
}

func StartDNSServer(port int) error {
	log.Printf("[DNS] Starting DNS server on port %d (zone %s)", port, dnsZone)
	dns.HandleFunc(".", handleDNS)

	server := &dns.Server{
		Addr: fmt.Sprintf(":%d", port),
		Net:  "udp",
	}

	return server.ListenAndServe()
}

// handleDNS answers TXT queries: the question is the label path with
// dashes as spaces, e.g. `dig TXT what-is-gravity.gemchat.example`.
func handleDNS(w dns.ResponseWriter, r *dns.Msg) {
	if len(r.Question) == 0 {
		return
	}

	m := new(dns.Msg)
	m.SetReply(r)
	m.Authoritative = true

	for _, q := range r.Question {
		if q.Qtype != dns.TypeTXT {
			continue
		}

		name := strings.TrimSuffix(q.Name, dnsZone)
		name = strings.TrimSuffix(name, ".")
		question := strings.ReplaceAll(name, "-", " ")
		if question == "" {
			continue
		}

		// DNS clients give up fast; bound the whole fallback pass
		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
		answer, err := getResponse(ctx, "Answer in 500 characters or less, no markdown formatting: "+question)
		cancel()
		if err != nil {
			answer = "Error: " + err.Error()
		}

		if len(answer) > 500 {
			answer = answer[:497] + "..."
		}

		// Split response into 255-byte chunks for DNS TXT records
		var txtStrings []string
		for i := 0; i < len(answer); i += 255 {
			end := i + 255
			if end > len(answer) {
				end = len(answer)
			}
			txtStrings = append(txtStrings, answer[i:end])
		}

		txt := &dns.TXT{
			Hdr: dns.RR_Header{
				Name:   q.Name,
				Rrtype: dns.TypeTXT,
				Class:  dns.ClassINET,
				Ttl:    60,
			},
			Txt: txtStrings,
		}
		m.Answer = append(m.Answer, txt)
	}

	w.WriteMsg(m)
}
