package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	. "github.com/stevegt/goadapt"
)

var envKeys = []string{
	"DeepSeek",
	"DEEPSEEK_API_KEY",
	"DEEPSEEK_BASE_URL",
	"DEEPSEEK_MODEL",
	"DEEPSEEK_TEMPERATURE",
	"DEEPSEEK_MAX_TOKENS",
	"DEEPSEEK_TIMEOUT",
	"DEEPSEEK_HISTORY",
	"DEEPSEEK_EDITOR",
	"DEEPSEEK_ADDR",
	"DEEPSEEK_CONFIG",
	"DEBUG",
}

// isolate hides the caller's environment and config file from the cli.
func isolate(t *testing.T) (dir string) {
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	dir = t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return
}

// run runs the cli with the given stdin and arguments and returns
// stdout, stderr, and rc
func run(stdin string, args ...string) (stdout, stderr bytes.Buffer, rc int, err error) {
	config := NewCliConfig()
	config.Stdin = strings.NewReader(stdin)
	config.Stdout = &stdout
	config.Stderr = &stderr

	// get the caller's filename and line number
	_, fn, line, _ := runtime.Caller(1)

	var exitRc int
	// replace the kong exit function with one that doesn't exit
	config.Exit = func(rc int) {
		if rc != 0 {
			fmt.Printf("%s:%d rc: %v\nstderr:\n%s\n", fn, line, rc, stderr.String())
			exitRc = rc
		}
	}

	rc, err = Cli(args, config)
	if rc == 0 {
		rc = exitRc
	}
	return
}

// endpoint is a fake chat-completion endpoint.
type endpoint struct {
	*httptest.Server
	mu     sync.Mutex
	status int
	body   map[string]interface{}
	calls  int
}

func newEndpoint(t *testing.T, status int, content string) *endpoint {
	e := &endpoint{status: status}
	e.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		e.mu.Lock()
		e.calls++
		e.body = nil
		json.Unmarshal(buf, &e.body)
		e.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(e.status)
		if e.status != http.StatusOK {
			fmt.Fprintf(w, `{"error":{"message":"denied","type":"invalid_request_error","param":null,"code":"invalid_api_key"}}`)
			return
		}
		fmt.Fprintf(w, `{"id":"x","object":"chat.completion","created":1,"model":"deepseek-chat","choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}]}`, content)
	}))
	t.Cleanup(e.Close)
	t.Setenv("DEEPSEEK_API_KEY", "sk-test")
	t.Setenv("DEEPSEEK_BASE_URL", e.URL+"/v1")
	return e
}

// last returns the call count and the most recent request body.
func (e *endpoint) last() (calls int, body map[string]interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls, e.body
}

func cimatch(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func TestStringInSlice(t *testing.T) {
	Tassert(t, cmdInSlice("ask <prompt>", []string{"ask", "app"}), "cmdInSlice failed")
	Tassert(t, !cmdInSlice("history", []string{"ask", "app"}), "cmdInSlice failed")
}

func TestAskDemo(t *testing.T) {
	isolate(t)

	stdout, stderr, rc, err := run("", "--demo", "hello", "world")
	Tassert(t, err == nil && rc == 0, "rc %d err %v stderr %s", rc, err, stderr.String())
	Tassert(t, strings.TrimSpace(stdout.String()) == "[demo mode] hello world", "unexpected output: %q", stdout.String())

	// explicit command name, prompt on stdin
	stdout, stderr, rc, err = run("from stdin\n", "--demo", "ask")
	Tassert(t, err == nil && rc == 0, "rc %d err %v stderr %s", rc, err, stderr.String())
	Tassert(t, cimatch(stdout.String(), "[demo mode] from stdin"), "unexpected output: %q", stdout.String())
}

func TestAskEmptyPrompt(t *testing.T) {
	isolate(t)
	stdout, stderr, rc, err := run("  \n", "--demo")
	Tassert(t, err == nil, "unexpected error: %v", err)
	Tassert(t, rc == 1, "expected rc 1, got %d", rc)
	Tassert(t, cimatch(stderr.String(), "empty prompt"), "unexpected stderr: %q", stderr.String())
	Tassert(t, stdout.Len() == 0, "expected no output, got %q", stdout.String())
}

func TestAskEndpoint(t *testing.T) {
	isolate(t)
	e := newEndpoint(t, http.StatusOK, "pong")

	stdout, stderr, rc, err := run("", "ask", "-t", "0.2", "--max-tokens", "50", "-s", "be brief", "ping")
	Tassert(t, err == nil && rc == 0, "rc %d err %v stderr %s", rc, err, stderr.String())
	Tassert(t, strings.TrimSpace(stdout.String()) == "pong", "unexpected output: %q", stdout.String())
	calls, body := e.last()
	Tassert(t, calls == 1, "expected one call, got %d", calls)

	temp, _ := body["temperature"].(float64)
	Tassert(t, math.Abs(temp-0.2) < 1e-6, "unexpected temperature: %v", body["temperature"])
	Tassert(t, body["max_tokens"] == float64(50), "unexpected max_tokens: %v", body["max_tokens"])
	Tassert(t, body["model"] == "deepseek-chat", "unexpected model: %v", body["model"])
	msgs, _ := body["messages"].([]interface{})
	Tassert(t, len(msgs) == 2, "expected system and user messages, got %v", body["messages"])

	// config defaults apply when no flags are given
	_, stderr, rc, err = run("", "ping")
	Tassert(t, err == nil && rc == 0, "rc %d err %v stderr %s", rc, err, stderr.String())
	_, body = e.last()
	temp, _ = body["temperature"].(float64)
	Tassert(t, math.Abs(temp-0.7) < 1e-6, "unexpected default temperature: %v", body["temperature"])
	Tassert(t, body["max_tokens"] == float64(1000), "unexpected default max_tokens: %v", body["max_tokens"])
}

func TestAskAuthenticationError(t *testing.T) {
	isolate(t)
	e := newEndpoint(t, http.StatusUnauthorized, "")
	stdout, stderr, rc, err := run("", "ping")
	Tassert(t, err == nil, "unexpected error: %v", err)
	Tassert(t, rc == 1, "expected rc 1, got %d", rc)
	Tassert(t, cimatch(stderr.String(), "authentication failed"), "unexpected stderr: %q", stderr.String())
	Tassert(t, stdout.Len() == 0, "expected no output, got %q", stdout.String())
	calls, _ := e.last()
	Tassert(t, calls == 1, "expected exactly one call, got %d", calls)
}

func TestAskMissingKey(t *testing.T) {
	isolate(t)
	_, stderr, rc, err := run("", "ping")
	Tassert(t, err == nil, "unexpected error: %v", err)
	Tassert(t, rc == 1, "expected rc 1, got %d", rc)
	Tassert(t, cimatch(stderr.String(), "missing api key"), "unexpected stderr: %q", stderr.String())
}

func TestAskBadTemperature(t *testing.T) {
	isolate(t)
	_, stderr, rc, _ := run("", "--demo", "ask", "-t", "5", "ping")
	Tassert(t, rc == 1, "expected rc 1, got %d", rc)
	Tassert(t, cimatch(stderr.String(), "temperature"), "unexpected stderr: %q", stderr.String())
}

func TestInteractive(t *testing.T) {
	isolate(t)
	stdout, stderr, rc, err := run("first\n\nsecond\nquit\nignored\n", "--demo", "ask", "-i")
	Tassert(t, err == nil && rc == 0, "rc %d err %v stderr %s", rc, err, stderr.String())
	out := stdout.String()
	Tassert(t, strings.Contains(out, "[demo mode] first"), "missing first answer: %q", out)
	Tassert(t, strings.Contains(out, "[demo mode] second"), "missing second answer: %q", out)
	Tassert(t, !strings.Contains(out, "ignored"), "prompt after quit was answered: %q", out)
}

func TestAskEdit(t *testing.T) {
	isolate(t)
	t.Setenv("DEEPSEEK_EDITOR", `sh -c 'printf "edited prompt" > "$1"' sh`)
	stdout, stderr, rc, err := run("", "--demo", "ask", "-e")
	Tassert(t, err == nil && rc == 0, "rc %d err %v stderr %s", rc, err, stderr.String())
	Tassert(t, strings.Contains(stdout.String(), "[demo mode] edited prompt"), "unexpected output: %q", stdout.String())
}

func TestHistory(t *testing.T) {
	dir := isolate(t)
	db := filepath.Join(dir, "history.db")

	// history is off unless configured
	_, stderr, rc, _ := run("", "history")
	Tassert(t, rc == 1 && cimatch(stderr.String(), "history is disabled"), "rc %d stderr %q", rc, stderr.String())

	for _, p := range []string{"one", "two"} {
		_, stderr, rc, err := run("", "--demo", "--history", db, p)
		Tassert(t, err == nil && rc == 0, "rc %d err %v stderr %s", rc, err, stderr.String())
	}

	stdout, stderr, rc, err := run("", "--history", db, "history")
	Tassert(t, err == nil && rc == 0, "rc %d err %v stderr %s", rc, err, stderr.String())
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	Tassert(t, len(lines) == 2, "expected 2 lines, got %q", stdout.String())
	Tassert(t, strings.HasSuffix(lines[0], "two") && strings.HasSuffix(lines[1], "one"), "expected newest first: %q", lines)

	stdout, _, _, _ = run("", "--history", db, "history", "-n", "1", "--full")
	Tassert(t, strings.Contains(stdout.String(), "[demo mode] two"), "expected full entry: %q", stdout.String())
	Tassert(t, !strings.Contains(stdout.String(), "[demo mode] one"), "limit ignored: %q", stdout.String())

	stdout, _, _, _ = run("", "--history", db, "version")
	Tassert(t, strings.Contains(stdout.String(), "history db version 1.0.0"), "unexpected version output: %q", stdout.String())

	_, stderr, rc, err = run("", "--history", db, "history", "--clear")
	Tassert(t, err == nil && rc == 0, "rc %d err %v stderr %s", rc, err, stderr.String())
	stdout, _, _, _ = run("", "--history", db, "history")
	Tassert(t, strings.TrimSpace(stdout.String()) == "", "expected empty history, got %q", stdout.String())
}

func TestApp(t *testing.T) {
	dir := isolate(t)
	comps := filepath.Join(dir, "components.json")
	err := os.WriteFile(comps, []byte(`[{"type":"Button","label":"Save"}]`), 0644)
	Tassert(t, err == nil, "write components: %v", err)

	stdout, stderr, rc, err := run("", "--demo", "app", "-c", comps, "a", "notes", "app")
	Tassert(t, err == nil && rc == 0, "rc %d err %v stderr %s", rc, err, stderr.String())
	out := stdout.String()
	Tassert(t, strings.Contains(out, "TitanForge"), "expected the app prompt echoed: %q", out)
	Tassert(t, strings.Contains(out, "a notes app") && strings.Contains(out, `"label": "Save"`), "unexpected output: %q", out)

	dst := filepath.Join(dir, "App.js")
	_, stderr, rc, err = run("", "--demo", "app", "-o", dst, "todo")
	Tassert(t, err == nil && rc == 0, "rc %d err %v stderr %s", rc, err, stderr.String())
	buf, err := os.ReadFile(dst)
	Tassert(t, err == nil, "read %s: %v", dst, err)
	Tassert(t, strings.Contains(string(buf), "todo"), "unexpected App.js: %q", string(buf))

	bad := filepath.Join(dir, "bad.json")
	err = os.WriteFile(bad, []byte(`{not json`), 0644)
	Tassert(t, err == nil, "write bad components: %v", err)
	_, stderr, rc, _ = run("", "--demo", "app", "-c", bad, "x")
	Tassert(t, rc == 1 && cimatch(stderr.String(), "invalid components file"), "rc %d stderr %q", rc, stderr.String())
}

func TestModelsTcVersionConfig(t *testing.T) {
	isolate(t)

	stdout, _, rc, err := run("", "models")
	Tassert(t, err == nil && rc == 0, "rc %d err %v", rc, err)
	Tassert(t, strings.Contains(stdout.String(), "* deepseek-chat"), "default model not marked: %q", stdout.String())
	Tassert(t, strings.Contains(stdout.String(), "deepseek-reasoner"), "missing model: %q", stdout.String())

	stdout, _, rc, err = run("", "--model", "deepseek-reasoner", "models")
	Tassert(t, err == nil && rc == 0, "rc %d err %v", rc, err)
	Tassert(t, strings.Contains(stdout.String(), "* deepseek-reasoner"), "--model not marked: %q", stdout.String())

	stdout, _, rc, err = run("hello world", "tc")
	Tassert(t, err == nil && rc == 0, "rc %d err %v", rc, err)
	Tassert(t, strings.TrimSpace(stdout.String()) == "2", "unexpected token count: %q", stdout.String())

	stdout, _, rc, err = run("", "version")
	Tassert(t, err == nil && rc == 0, "rc %d err %v", rc, err)
	Tassert(t, strings.Contains(stdout.String(), "deepseek-agent version"), "unexpected output: %q", stdout.String())

	t.Setenv("DEEPSEEK_API_KEY", "sk-abcdefghijklmnop")
	stdout, _, rc, err = run("", "config")
	Tassert(t, err == nil && rc == 0, "rc %d err %v", rc, err)
	Tassert(t, !strings.Contains(stdout.String(), "abcdefghijkl"), "key leaked: %q", stdout.String())
	Tassert(t, strings.Contains(stdout.String(), "base_url: https://api.deepseek.com/v1"), "unexpected config: %q", stdout.String())
}

func TestUnknownFlag(t *testing.T) {
	isolate(t)
	_, stderr, rc, err := run("", "--no-such-flag")
	Tassert(t, err == nil, "unexpected error: %v", err)
	Tassert(t, rc == 1, "expected rc 1, got %d", rc)
	Tassert(t, stderr.Len() > 0, "expected a usage error on stderr")
}

func TestVerboseRestoresDebug(t *testing.T) {
	isolate(t)
	_, stderr, rc, err := run("", "-v", "version")
	Tassert(t, err == nil && rc == 0, "rc %d err %v stderr %s", rc, err, stderr.String())
	_, set := os.LookupEnv("DEBUG")
	Tassert(t, !set, "DEBUG left set after a verbose run")

	t.Setenv("DEBUG", "keep")
	_, _, rc, err = run("", "-v", "version")
	Tassert(t, err == nil && rc == 0, "rc %d err %v", rc, err)
	Tassert(t, os.Getenv("DEBUG") == "keep", "DEBUG not restored: %q", os.Getenv("DEBUG"))
}
