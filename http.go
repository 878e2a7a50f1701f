package main

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// isBrowserUA checks if the user agent appears to be from a web browser
func isBrowserUA(ua string) bool {
	ua = strings.ToLower(ua)
	browserIndicators := []string{
		"mozilla", "msie", "trident", "edge", "chrome", "safari",
		"firefox", "opera", "webkit", "gecko", "khtml",
	}
	for _, indicator := range browserIndicators {
		if strings.Contains(ua, indicator) {
			return true
		}
	}
	return false
}

const htmlHeader = `<!DOCTYPE html>
<html>
<head>
    <title>gemchat</title>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { margin: 2rem auto; max-width: 680px; padding: 0 1rem; font-family: system-ui, -apple-system, sans-serif; background: #F7F9F7; color: #1F2D23; }
        h1 { font-size: 1.3rem; }
        #log { margin: 1rem 0; max-height: 60vh; overflow-y: auto; }
        .q { padding: .75rem 1rem; margin: .75rem 0 .25rem; background: #DCE8DC; border-left: 4px solid #3A6B4C; font-style: italic; }
        .a { padding: .75rem 1rem; margin: .25rem 0 .75rem; background: #FFFFFF; border: 1px solid #DCE8DC; border-radius: 6px; }
        #error { display: none; padding: .6rem 1rem; margin: .5rem 0; background: #F3D9D9; border-left: 4px solid #A33A3A; }
        #busy { display: none; margin: .5rem 0; color: #3A6B4C; }
        .input-row { display: flex; gap: .5rem; }
        #q { flex: 1; padding: .7rem 1rem; font-size: 1rem; border: 2px solid #3A6B4C; border-radius: 8px; outline: none; background: #FFFFFF; }
        #send { padding: .7rem 1.5rem; font-size: 1rem; font-weight: 600; background: #3A6B4C; color: white; border: none; border-radius: 8px; cursor: pointer; }
        #send:disabled { background: #9DB8A6; cursor: wait; }
    </style>
</head>
<body>
    <h1>gemchat</h1>
    <div id="log">`

const htmlFooter = `</div>
    <div id="error"></div>
    <div id="busy">Thinking&#8230;</div>
    <div class="input-row">
        <input type="text" id="q" autocomplete="off" autofocus>
        <button id="send">Send</button>
    </div>
    <script>
    var logEl = document.getElementById('log');
    var input = document.getElementById('q');
    var send = document.getElementById('send');
    var errorEl = document.getElementById('error');
    var busyEl = document.getElementById('busy');

    function setError(text) {
        if (text === null) {
            errorEl.style.display = 'none';
            errorEl.textContent = '';
        } else {
            errorEl.textContent = text;
            errorEl.style.display = 'block';
        }
    }

    function setBusy(on) {
        busyEl.style.display = on ? 'block' : 'none';
        send.disabled = on;
    }

    // Text goes in via createTextNode only; newlines become <br> elements.
    // Nothing from the wire is ever parsed as markup.
    function appendTurn(role, text) {
        var div = document.createElement('div');
        div.className = role === 'user' ? 'q' : 'a';
        var lines = text.split('\n');
        for (var i = 0; i < lines.length; i++) {
            if (i > 0) div.appendChild(document.createElement('br'));
            div.appendChild(document.createTextNode(lines[i]));
        }
        logEl.appendChild(div);
    }

    function submitUserMessage() {
        var text = input.value;
        if (text.trim() === '') {
            setError('Please enter a message.');
            return;
        }
        setError(null);
        appendTurn('user', text);
        input.value = '';
        setBusy(true);
        fetch('/ask', {
            method: 'POST',
            headers: {
                'Content-Type': 'application/x-www-form-urlencoded',
                'X-Requested-With': 'XMLHttpRequest'
            },
            body: 'q=' + encodeURIComponent(text)
        }).then(function (resp) {
            return resp.text().then(function (body) {
                if (!resp.ok) { throw new Error(body || ('HTTP ' + resp.status)); }
                return body;
            });
        }).then(function (reply) {
            appendTurn('assistant', reply);
            logEl.scrollTop = logEl.scrollHeight;
        }).catch(function (err) {
            setError(err.message);
        }).finally(function () {
            setBusy(false);
            input.focus();
        });
    }

    send.addEventListener('click', submitUserMessage);
    input.addEventListener('keydown', function (e) {
        if (e.key === 'Enter' && !e.shiftKey) {
            e.preventDefault();
            submitUserMessage();
        }
    });
    </script>
</body>
</html>`

func StartHTTPServer(port int) error {
	http.HandleFunc("/", handleRoot)
	http.HandleFunc("/ask", handleAsk)
	http.HandleFunc("/health", handleHealth)
	http.HandleFunc("/recent", handleRecent)

	addr := fmt.Sprintf(":%d", port)
	log.Printf("[HTTP] Listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}

func StartHTTPSServer(port int, certFile, keyFile string) error {
	addr := fmt.Sprintf(":%d", port)
	return http.ListenAndServeTLS(addr, certFile, keyFile, nil)
}

// handleRoot serves the chat page to browsers and plain-text answers to
// everything else (curl: GET /?q=... or /what-is-go).
func handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && strings.Contains(r.URL.Path, ".") {
		http.NotFound(w, r)
		return
	}

	query := queryFromRequest(r)
	wantsHTML := isBrowserUA(r.Header.Get("User-Agent")) ||
		strings.Contains(r.Header.Get("Accept"), "text/html")

	if !wantsHTML {
		// Terminal client
		if query == "" {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			fmt.Fprintln(w, "Usage: curl gemchat/?q=your+question")
			return
		}
		answer, err := getResponse(r.Context(), query)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, answer)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'unsafe-inline'; object-src 'none'; base-uri 'none'; style-src 'unsafe-inline'")
	fmt.Fprint(w, htmlHeader)

	// A ?q= link gets its exchange rendered server-side before the page
	// script takes over. Everything goes through html.EscapeString.
	if query != "" {
		fmt.Fprintf(w, `<div class="q">%s</div>`, html.EscapeString(query))
		answer, err := getResponse(r.Context(), query)
		if err != nil {
			fmt.Fprintf(w, `<div class="a">Error: %s</div>`, html.EscapeString(err.Error()))
		} else {
			escaped := strings.ReplaceAll(html.EscapeString(answer), "\n", "<br>")
			fmt.Fprintf(w, `<div class="a">%s</div>`, escaped)
		}
	}

	fmt.Fprint(w, htmlFooter)
}

// handleAsk is the AJAX endpoint behind the chat page. One question in,
// plain answer text out; terminal failures come back as the error reason
// in the body.
func handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	query := r.FormValue("q")
	if strings.TrimSpace(query) == "" {
		// The page script rejects empty input before calling; this guards
		// direct callers.
		http.Error(w, "empty message", http.StatusBadRequest)
		return
	}

	start := time.Now()
	answer, err := getResponse(r.Context(), query)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	if debugMode {
		log.Printf("[HTTP] /ask answered in %s", time.Since(start).Round(time.Millisecond))
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, answer)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleRecent is an operator view of the last audited exchanges.
// Empty when the audit database is disabled.
func handleRecent(w http.ResponseWriter, r *http.Request) {
	entries, err := RecentCompletions(20)
	if err != nil {
		http.Error(w, "audit database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// queryFromRequest extracts the question from ?q=, a path like
// /what-is-go, or a raw POST body.
func queryFromRequest(r *http.Request) string {
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err == nil {
			if q := r.FormValue("q"); q != "" {
				return q
			}
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, 65536))
		if err == nil && len(body) > 0 {
			return string(body)
		}
		return ""
	}

	if q := r.URL.Query().Get("q"); q != "" {
		return q
	}
	if r.URL.Path != "/" {
		return strings.ReplaceAll(strings.TrimPrefix(r.URL.Path, "/"), "-", " ")
	}
	return ""
}
