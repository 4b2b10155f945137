package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/hyp3rd/ewrap"

	"github.com/meshcache/meshcache/internal/cluster"
	"github.com/meshcache/meshcache/internal/constants"
	"github.com/meshcache/meshcache/internal/sentinel"
	"github.com/meshcache/meshcache/pkg/cache"
)

// status code threshold for error classification.
const statusThreshold = 300

const (
	errMsgNewRequest = "new request"
	errMsgDoRequest  = "do request"
)

// HTTPClient implements Client over HTTP JSON. Node addresses come from the
// membership table carried in each cluster.Node.
type HTTPClient struct {
	client *http.Client
	origin cluster.Node
}

// NewHTTPClient creates an HTTP client with the given per-request timeout.
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = constants.DefaultTransportTimeout
	}

	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// SetOrigin stamps outgoing health probes with the local node identity, so the
// probed peer can reconcile a seed entry it only knew by address.
func (t *HTTPClient) SetOrigin(node cluster.Node) {
	t.origin = node
}

func baseURL(node cluster.Node) (string, error) {
	if node.Address == "" {
		return "", sentinel.ErrNodeNotFound
	}

	return "http://" + node.Address, nil
}

// ForwardSet routes a client write to the key's primary.
func (t *HTTPClient) ForwardSet(ctx context.Context, node cluster.Node, item *cache.Item) error {
	return t.postSet(ctx, node, item, false)
}

// Replicate pushes a sequenced write to a replica.
func (t *HTTPClient) Replicate(ctx context.Context, node cluster.Node, item *cache.Item) error {
	return t.postSet(ctx, node, item, true)
}

func (t *HTTPClient) postSet(ctx context.Context, node cluster.Node, item *cache.Item, replicate bool) error {
	base, err := baseURL(node)
	if err != nil {
		return err
	}

	payloadBytes, err := json.Marshal(&httpSetRequest{Item: item, Replicate: replicate})
	if err != nil {
		return ewrap.Wrap(err, "marshal set request")
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/internal/cache/set", bytes.NewReader(payloadBytes))
	if err != nil {
		return ewrap.Wrap(err, errMsgNewRequest)
	}

	hreq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(hreq)
	if err != nil {
		return ewrap.Wrap(err, errMsgDoRequest)
	}

	defer func() { _ = resp.Body.Close() }() //nolint:errcheck // best-effort

	return errorFromStatus(resp, "forward set")
}

// ForwardGet reads a key from a remote owner.
func (t *HTTPClient) ForwardGet(ctx context.Context, node cluster.Node, key string) (*cache.Item, bool, error) {
	base, err := baseURL(node)
	if err != nil {
		return nil, false, err
	}

	reqURL := fmt.Sprintf("%s/internal/cache/get?key=%s", base, url.QueryEscape(key))

	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, ewrap.Wrap(err, errMsgNewRequest)
	}

	resp, err := t.client.Do(hreq)
	if err != nil {
		return nil, false, ewrap.Wrap(err, errMsgDoRequest)
	}

	defer func() { _ = resp.Body.Close() }() //nolint:errcheck // best-effort

	err = errorFromStatus(resp, "forward get")
	if err != nil {
		return nil, false, err
	}

	var body httpGetResponse

	err = json.NewDecoder(resp.Body).Decode(&body)
	if err != nil {
		return nil, false, ewrap.Wrap(err, "decode get response")
	}

	if !body.Found || body.Item == nil {
		return nil, false, nil
	}

	return body.Item, true, nil
}

// ForwardRemove routes a client delete to the key's primary.
func (t *HTTPClient) ForwardRemove(ctx context.Context, node cluster.Node, key string) error {
	return t.deleteKey(ctx, node, httpRemoveRequest{Key: key})
}

// ReplicateRemove pushes a sequenced delete to a replica.
func (t *HTTPClient) ReplicateRemove(ctx context.Context, node cluster.Node, key string, seq uint64, origin string) error {
	return t.deleteKey(ctx, node, httpRemoveRequest{Key: key, Sequence: seq, Origin: origin, Replicate: true})
}

func (t *HTTPClient) deleteKey(ctx context.Context, node cluster.Node, req httpRemoveRequest) error {
	base, err := baseURL(node)
	if err != nil {
		return err
	}

	payloadBytes, err := json.Marshal(&req)
	if err != nil {
		return ewrap.Wrap(err, "marshal remove request")
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodDelete, base+"/internal/cache/remove", bytes.NewReader(payloadBytes))
	if err != nil {
		return ewrap.Wrap(err, errMsgNewRequest)
	}

	hreq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(hreq)
	if err != nil {
		return ewrap.Wrap(err, errMsgDoRequest)
	}

	defer func() { _ = resp.Body.Close() }() //nolint:errcheck // best-effort

	return errorFromStatus(resp, "forward remove")
}

// Resync pulls the full entry snapshot from a peer.
func (t *HTTPClient) Resync(ctx context.Context, node cluster.Node) ([]*cache.Item, error) {
	base, err := baseURL(node)
	if err != nil {
		return nil, err
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/internal/cache/resync", nil)
	if err != nil {
		return nil, ewrap.Wrap(err, errMsgNewRequest)
	}

	resp, err := t.client.Do(hreq)
	if err != nil {
		return nil, ewrap.Wrap(err, errMsgDoRequest)
	}

	defer func() { _ = resp.Body.Close() }() //nolint:errcheck // best-effort

	err = errorFromStatus(resp, "resync")
	if err != nil {
		return nil, err
	}

	var body httpResyncResponse

	err = json.NewDecoder(resp.Body).Decode(&body)
	if err != nil {
		return nil, ewrap.Wrap(err, "decode resync response")
	}

	return body.Items, nil
}

// Health probes a remote node's health endpoint.
func (t *HTTPClient) Health(ctx context.Context, node cluster.Node) error {
	base, err := baseURL(node)
	if err != nil {
		return err
	}

	healthURL := base + "/health"
	if t.origin.ID != "" {
		healthURL = fmt.Sprintf("%s?from=%s&addr=%s",
			healthURL, url.QueryEscape(string(t.origin.ID)), url.QueryEscape(t.origin.Address))
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return ewrap.Wrap(err, errMsgNewRequest)
	}

	resp, err := t.client.Do(hreq)
	if err != nil {
		return ewrap.Wrap(err, errMsgDoRequest)
	}

	defer func() { _ = resp.Body.Close() }() //nolint:errcheck // best-effort

	return errorFromStatus(resp, "health")
}

// errorFromStatus converts an HTTP status back into the sentinel error the
// server mapped it from; the body is drained only on failure.
func errorFromStatus(resp *http.Response, op string) error {
	switch resp.StatusCode {
	case http.StatusConflict:
		return sentinel.ErrStalePrimary
	case http.StatusPreconditionFailed:
		return sentinel.ErrSequenceReplayed
	case http.StatusNotFound:
		return sentinel.ErrKeyNotFound
	case http.StatusServiceUnavailable:
		return sentinel.ErrUnavailable
	}

	if resp.StatusCode >= statusThreshold {
		body, rerr := io.ReadAll(resp.Body)
		if rerr != nil {
			return ewrap.Wrap(rerr, "read error body")
		}

		return ewrap.Newf("%s status %d body %s", op, resp.StatusCode, string(body))
	}

	return nil
}
