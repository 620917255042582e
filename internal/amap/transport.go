package amap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds a single call when the caller sets nothing else.
const DefaultTimeout = 10 * time.Second

// maxResponseBytes caps a provider body. A full page of places with photos
// stays well under 1 MiB.
var maxResponseBytes int64 = 8 << 20

// Transport performs one outbound call and returns the provider's JSON payload.
type Transport interface {
	Fetch(ctx context.Context, rawURL string) (json.RawMessage, error)
}

// callbackRegistry holds the one-shot callbacks of in-flight JSONP calls.
type callbackRegistry struct {
	mu        sync.Mutex
	callbacks map[string]func(json.RawMessage)
}

func newCallbackRegistry() *callbackRegistry {
	return &callbackRegistry{callbacks: make(map[string]func(json.RawMessage))}
}

func (r *callbackRegistry) register(name string, fn func(json.RawMessage)) {
	r.mu.Lock()
	r.callbacks[name] = fn
	r.mu.Unlock()
}

func (r *callbackRegistry) remove(name string) {
	r.mu.Lock()
	delete(r.callbacks, name)
	r.mu.Unlock()
}

// invoke fires and unregisters the named callback. It reports false when no
// such callback is registered, e.g. because the call already timed out.
func (r *callbackRegistry) invoke(name string, payload json.RawMessage) bool {
	r.mu.Lock()
	fn, ok := r.callbacks[name]
	delete(r.callbacks, name)
	r.mu.Unlock()

	if !ok {
		return false
	}
	fn(payload)
	return true
}

func (r *callbackRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.callbacks)
}

// callbackName returns amap_callback_<unix ms>_<9 random chars>.
func callbackName() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("amap_callback_%d_%s", time.Now().UnixMilli(), suffix)
}

// JSONPTransport calls Amap with a callback parameter and dispatches the
// wrapped response to a per-call registered callback.
type JSONPTransport struct {
	httpClient *http.Client
	timeout    time.Duration
	registry   *callbackRegistry
	newName    func() string
}

// NewJSONPTransport creates a JSONP transport. A non-positive timeout means DefaultTimeout.
func NewJSONPTransport(httpClient *http.Client, timeout time.Duration) *JSONPTransport {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &JSONPTransport{
		httpClient: httpClient,
		timeout:    timeout,
		registry:   newCallbackRegistry(),
		newName:    callbackName,
	}
}

// Pending returns the number of callbacks currently registered.
func (t *JSONPTransport) Pending() int {
	return t.registry.len()
}

func (t *JSONPTransport) Fetch(ctx context.Context, rawURL string) (json.RawMessage, error) {
	endpoint := endpointOf(rawURL)
	name := t.newName()

	done := make(chan json.RawMessage, 1)
	t.registry.register(name, func(payload json.RawMessage) {
		select {
		case done <- payload:
		default:
		}
	})
	defer t.registry.remove(name)

	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	loaded := make(chan error, 1)
	go func() {
		loaded <- t.load(callCtx, withCallback(rawURL, name))
	}()

	select {
	case payload := <-done:
		return payload, nil
	case err := <-loaded:
		if err == nil {
			// load returns only after the callback has run
			select {
			case payload := <-done:
				return payload, nil
			default:
				err = errors.New("callback was not invoked")
			}
		}
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, &TransportError{Endpoint: endpoint, Err: ErrTimeout}
		}
		if ctx.Err() != nil {
			return nil, &TransportError{Endpoint: endpoint, Err: ctx.Err()}
		}
		return nil, &TransportError{Endpoint: endpoint, Err: fmt.Errorf("%w: %v", ErrLoadFailed, err)}
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return nil, &TransportError{Endpoint: endpoint, Err: ctx.Err()}
		}
		return nil, &TransportError{Endpoint: endpoint, Err: ErrTimeout}
	}
}

// load fetches the script and runs it, which here means invoking the callback it names.
func (t *JSONPTransport) load(ctx context.Context, scriptURL string) error {
	body, err := get(ctx, t.httpClient, scriptURL)
	if err != nil {
		return err
	}

	name, payload, err := parseJSONP(body)
	if err != nil {
		return err
	}
	if !t.registry.invoke(name, payload) {
		return fmt.Errorf("no callback registered as %q", name)
	}
	return nil
}

// parseJSONP splits `name({...});` into the callback name and its argument.
func parseJSONP(body []byte) (string, json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	body = bytes.TrimSuffix(body, []byte(";"))
	body = bytes.TrimSpace(body)

	open := bytes.IndexByte(body, '(')
	if open <= 0 || body[len(body)-1] != ')' {
		return "", nil, errors.New("response is not a JSONP script")
	}

	name := strings.TrimSpace(string(body[:open]))
	payload := bytes.TrimSpace(body[open+1 : len(body)-1])
	if !json.Valid(payload) {
		return "", nil, errors.New("JSONP payload is not valid JSON")
	}
	return name, json.RawMessage(payload), nil
}

func withCallback(rawURL, name string) string {
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + "callback=" + url.QueryEscape(name)
}

// DirectTransport issues a plain JSON GET. Useful where no callback wrapping is wanted.
type DirectTransport struct {
	httpClient *http.Client
	timeout    time.Duration
}

func NewDirectTransport(httpClient *http.Client, timeout time.Duration) *DirectTransport {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &DirectTransport{httpClient: httpClient, timeout: timeout}
}

func (t *DirectTransport) Fetch(ctx context.Context, rawURL string) (json.RawMessage, error) {
	endpoint := endpointOf(rawURL)

	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	body, err := get(callCtx, t.httpClient, rawURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &TransportError{Endpoint: endpoint, Err: ctx.Err()}
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, &TransportError{Endpoint: endpoint, Err: ErrTimeout}
		}
		return nil, &TransportError{Endpoint: endpoint, Err: fmt.Errorf("%w: %v", ErrLoadFailed, err)}
	}
	if !json.Valid(body) {
		return nil, &TransportError{Endpoint: endpoint, Err: fmt.Errorf("%w: response is not JSON", ErrLoadFailed)}
	}
	return json.RawMessage(body), nil
}

func get(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		// *url.Error repeats the full URL, key included
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(body)) > maxResponseBytes {
		return nil, fmt.Errorf("response larger than %d bytes", maxResponseBytes)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return body, nil
}

// endpointOf strips the query so the API key never reaches logs or errors.
func endpointOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "unknown"
	}
	return u.Path
}
