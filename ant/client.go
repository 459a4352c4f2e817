// Package ant updates the records of an Arweave Name Token (ANT), an AO
// process which maps undernames of an ArNS name to transaction identifiers.
//
// Records are written by signed messages posted to an AO messenger unit (MU),
// and the outcome of each message is read from a compute unit (CU). Records
// are read by CU dry-runs, which aren't signed.
package ant

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.permalaunch.dev/core/arweave"
)

// Default AO units.
const (
	DefaultMUURL = "https://mu.ao-testnet.xyz"
	DefaultCUURL = "https://cu.ao-testnet.xyz"
)

// Config configures a Client.
type Config struct {
	// MUURL is the base URL of the messenger unit. If empty, DefaultMUURL is used.
	MUURL string
	// CUURL is the base URL of the compute unit. If empty, DefaultCUURL is used.
	CUURL string
	// HTTPClient used for requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
}

// Client sends messages to, and reads state of, a single ANT process.
type Client struct {
	cfg       Config
	processID string
	target    []byte
	signer    arweave.Signer
}

// ErrProcess is returned when an ANT process handled a message with an error.
var ErrProcess = errors.New("ANT process returned an error")

// Tags attached to every AO message, ahead of caller tags.
var messageTags = arweave.Tags{
	{Name: "Data-Protocol", Value: "ao"},
	{Name: "Variant", Value: "ao.TN.1"},
	{Name: "Type", Value: "Message"},
	{Name: "SDK", Value: "aoconnect"},
}

// NewClient returns a Client of ANT |processID|. |signer| may be nil, in
// which case the Client may read records but not write them.
func NewClient(cfg Config, processID string, signer arweave.Signer) (*Client, error) {
	var target, err = arweave.DecodeID(processID)
	if err != nil {
		return nil, errors.WithMessage(err, "ANT process")
	}
	if cfg.MUURL == "" {
		cfg.MUURL = DefaultMUURL
	}
	if cfg.CUURL == "" {
		cfg.CUURL = DefaultCUURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &Client{cfg: cfg, processID: processID, target: target, signer: signer}, nil
}

// ProcessID returns the ANT process identifier of the Client.
func (c *Client) ProcessID() string { return c.processID }

// Result is the outcome of a message evaluated by a process.
type Result struct {
	Messages []ResultMessage `json:"Messages"`
	Output   json.RawMessage `json:"Output,omitempty"`
	Error    string          `json:"Error,omitempty"`
}

// ResultMessage is a message emitted by a process in response to another.
type ResultMessage struct {
	Target string       `json:"Target,omitempty"`
	Tags   arweave.Tags `json:"Tags"`
	Data   string       `json:"Data"`
}

// Err returns a non-nil error if the process reported a failure, either as
// the Result's Error, or as an Error tag of an emitted message.
func (r *Result) Err() error {
	if r.Error != "" {
		return errors.WithMessage(ErrProcess, r.Error)
	}
	for _, msg := range r.Messages {
		if v, ok := msg.Tags.Get("Error"); ok {
			if msg.Data != "" {
				v = v + ": " + msg.Data
			}
			return errors.WithMessage(ErrProcess, v)
		}
	}
	return nil
}

// Send signs and posts a message with |tags| and |data| to the process,
// and returns the message's Result.
func (c *Client) Send(ctx context.Context, tags arweave.Tags, data []byte) (string, *Result, error) {
	if c.signer == nil {
		return "", nil, errors.New("sending ANT messages requires a signing wallet")
	}

	var anchor = make([]byte, 24)
	if _, err := rand.Read(anchor); err != nil {
		return "", nil, err
	}
	var item = arweave.DataItem{
		Target: c.target,
		Anchor: []byte(arweave.EncodeB64URL(anchor)), // 32 bytes.
		Tags:   append(append(arweave.Tags{}, messageTags...), tags...),
	}
	var id, raw, err = item.SignBytes(c.signer, data)
	if err != nil {
		return "", nil, errors.WithMessage(err, "signing message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.MUURL, "/")+"/", bytes.NewReader(raw))
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Accept", "application/json")

	var sent struct {
		ID string `json:"id"`
	}
	if err = c.do(req, &sent); err != nil {
		return "", nil, errors.WithMessage(err, "posting message to MU")
	}
	if sent.ID != "" && sent.ID != id {
		return "", nil, errors.Errorf("MU acknowledged message %s (expected %s)", sent.ID, id)
	}

	log.WithFields(log.Fields{
		"process": c.processID,
		"message": id,
	}).Debug("sent ANT message")

	result, err := c.Result(ctx, id)
	if err != nil {
		return id, nil, err
	}
	return id, result, nil
}

// Result reads the Result of message |id| from the CU.
func (c *Client) Result(ctx context.Context, id string) (*Result, error) {
	var u = fmt.Sprintf("%s/result/%s?process-id=%s",
		strings.TrimRight(c.cfg.CUURL, "/"), url.PathEscape(id), url.QueryEscape(c.processID))

	var req, err = http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	var result Result
	if err = c.do(req, &result); err != nil {
		return nil, errors.WithMessagef(err, "reading result of message %s", id)
	}
	return &result, nil
}

// DryRun evaluates a message with |tags| against the process without
// persisting it, and returns its Result.
func (c *Client) DryRun(ctx context.Context, tags arweave.Tags) (*Result, error) {
	var body, err = json.Marshal(dryRunRequest{
		ID:     "1234",
		Target: c.processID,
		Owner:  "1234",
		Anchor: "0",
		Data:   "1234",
		Tags:   append(append(arweave.Tags{}, messageTags...), tags...),
	})
	if err != nil {
		return nil, err
	}
	var u = fmt.Sprintf("%s/dry-run?process-id=%s", strings.TrimRight(c.cfg.CUURL, "/"), url.QueryEscape(c.processID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var result Result
	if err = c.do(req, &result); err != nil {
		return nil, errors.WithMessage(err, "dry-run")
	}
	return &result, nil
}

type dryRunRequest struct {
	ID     string       `json:"Id"`
	Target string       `json:"Target"`
	Owner  string       `json:"Owner"`
	Anchor string       `json:"Anchor"`
	Data   string       `json:"Data"`
	Tags   arweave.Tags `json:"Tags"`
}

func (c *Client) do(req *http.Request, into interface{}) error {
	var resp, err = c.cfg.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var b, _ = io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("unexpected status %s: %s", resp.Status, bytes.TrimSpace(b))
	}
	if err = json.NewDecoder(resp.Body).Decode(into); err != nil {
		return errors.WithMessage(err, "decoding response")
	}
	return nil
}
