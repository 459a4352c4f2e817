package ant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.permalaunch.dev/core/arweave"
	"go.permalaunch.dev/core/arweave/arweavetest"
)

const (
	testProcess  = "bh9l1cy0aksiL_x9M359faGzM_yjralacHIUo8_nQXM"
	testManifest = "UyC5P5qKPZaltMmmZAWdakhlDXsBF6qmyrbWYFchRTk"
)

func TestSetRecord(t *testing.T) {
	var ao = newFakeAO(t)
	defer ao.Close()

	var wallet = arweavetest.Wallet(t)
	var client, err = NewClient(ao.config(), testProcess, wallet)
	require.NoError(t, err)

	var u = &Updater{
		Records: client,
		AppName: "Permalaunch",
		Tags:    arweave.Tags{{Name: "GIT-HASH", Value: "abc123"}},
	}
	require.NoError(t, u.UpdateRecord(context.Background(), testManifest))

	require.Len(t, ao.messages, 1)
	var msg = ao.messages[0]
	require.NoError(t, msg.Verify())
	require.Equal(t, wallet.Owner(), msg.Owner)
	require.Len(t, msg.Anchor, 32)
	require.Equal(t, []byte("1234"), msg.Data)

	target, _ := arweave.DecodeID(testProcess)
	require.Equal(t, target, msg.Target)

	require.Equal(t, arweave.Tags{
		{Name: "Data-Protocol", Value: "ao"},
		{Name: "Variant", Value: "ao.TN.1"},
		{Name: "Type", Value: "Message"},
		{Name: "SDK", Value: "aoconnect"},
		{Name: "GIT-HASH", Value: "abc123"},
		{Name: "App-Name", Value: "Permalaunch"},
		{Name: "Action", Value: "Set-Record"},
		{Name: "Sub-Domain", Value: "@"},
		{Name: "Transaction-Id", Value: testManifest},
		{Name: "TTL-Seconds", Value: "3600"},
	}, msg.Tags)
	require.Equal(t, []string{msg.ID}, ao.resultsRead)
}

func TestSetRecordProcessErrors(t *testing.T) {
	var ao = newFakeAO(t)
	defer ao.Close()

	var client, err = NewClient(ao.config(), testProcess, arweavetest.Wallet(t))
	require.NoError(t, err)
	var rec = Record{Undername: "docs", TransactionID: testManifest, TTLSeconds: 60}

	// Failure reported as an Error tag of an emitted message.
	ao.result = Result{Messages: []ResultMessage{{
		Tags: arweave.Tags{{Name: "Action", Value: "Invalid-Set-Record-Notice"}, {Name: "Error", Value: "Set-Record-Error"}},
		Data: "caller is not a controller",
	}}}
	err = client.SetRecord(context.Background(), rec, nil)
	require.ErrorIs(t, err, ErrProcess)
	require.ErrorContains(t, err, "Set-Record-Error: caller is not a controller")

	// Failure reported as the result's Error.
	ao.result = Result{Error: "out of memory"}
	err = client.SetRecord(context.Background(), rec, nil)
	require.ErrorIs(t, err, ErrProcess)
	require.ErrorContains(t, err, "out of memory")

	// Failure to post the message.
	ao.muStatus = http.StatusServiceUnavailable
	err = client.SetRecord(context.Background(), rec, nil)
	require.ErrorContains(t, err, "posting message to MU: unexpected status 503 Service Unavailable")

	// Malformed transaction ids are rejected before sending.
	err = client.SetRecord(context.Background(), Record{TransactionID: "not-an-id"}, nil)
	require.ErrorContains(t, err, "record transaction")
}

func TestSetRecordRequiresSigner(t *testing.T) {
	var client, err = NewClient(Config{}, testProcess, nil)
	require.NoError(t, err)

	err = client.SetRecord(context.Background(), Record{TransactionID: testManifest}, nil)
	require.ErrorContains(t, err, "requires a signing wallet")
}

func TestGetRecord(t *testing.T) {
	var ao = newFakeAO(t)
	defer ao.Close()

	var client, err = NewClient(ao.config(), testProcess, nil)
	require.NoError(t, err)

	ao.dryRun = Result{Messages: []ResultMessage{{
		Tags: arweave.Tags{{Name: "Action", Value: "Record-Notice"}},
		Data: `{"transactionId":"` + testManifest + `","ttlSeconds":900}`,
	}}}
	rec, err := client.GetRecord(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, &Record{Undername: "@", TransactionID: testManifest, TTLSeconds: 900}, rec)

	require.Equal(t, testProcess, ao.dryRunReq.Target)
	require.Equal(t, arweave.Tags{
		{Name: "Data-Protocol", Value: "ao"},
		{Name: "Variant", Value: "ao.TN.1"},
		{Name: "Type", Value: "Message"},
		{Name: "SDK", Value: "aoconnect"},
		{Name: "Action", Value: "Record"},
		{Name: "Sub-Domain", Value: "@"},
	}, ao.dryRunReq.Tags)

	ao.dryRun = Result{Messages: []ResultMessage{{
		Tags: arweave.Tags{{Name: "Error", Value: "Record-Error"}},
		Data: "Record does not exist",
	}}}
	_, err = client.GetRecord(context.Background(), "missing")
	require.ErrorIs(t, err, ErrProcess)

	ao.dryRun = Result{}
	_, err = client.GetRecord(context.Background(), "empty")
	require.EqualError(t, err, `reading ANT record "empty": process returned no messages`)
}

func TestNewClientValidatesProcess(t *testing.T) {
	var _, err = NewClient(Config{}, "my-name.example", nil)
	require.ErrorContains(t, err, "ANT process: invalid identifier")

	c, err := NewClient(Config{}, testProcess, nil)
	require.NoError(t, err)
	require.Equal(t, testProcess, c.ProcessID())
	require.Equal(t, DefaultMUURL, c.cfg.MUURL)
	require.Equal(t, DefaultCUURL, c.cfg.CUURL)
}

func TestUpdaterDefaults(t *testing.T) {
	var setter = &recordingSetter{}
	var u = &Updater{Records: setter}

	require.NoError(t, u.UpdateRecord(context.Background(), testManifest))
	require.Equal(t, Record{Undername: "@", TransactionID: testManifest, TTLSeconds: 3600}, setter.rec)
	require.Empty(t, setter.tags)

	setter.err = errors.New("registry down")
	require.EqualError(t, u.UpdateRecord(context.Background(), testManifest), "registry down")
}

func TestURL(t *testing.T) {
	require.Equal(t, "https://"+testProcess+".ar-io.dev", URL(testProcess, "@"))
	require.Equal(t, "https://docs."+testProcess+".ar-io.dev", URL(testProcess, "docs"))
	require.Equal(t, "https://my-site.ar.io", URL("my-site.ar.io", ""))
	require.Equal(t, "https://v2.my-site.ar.io", URL("my-site.ar.io", "v2"))
}

type recordingSetter struct {
	rec  Record
	tags arweave.Tags
	err  error
}

func (r *recordingSetter) SetRecord(_ context.Context, rec Record, tags arweave.Tags) error {
	r.rec, r.tags = rec, tags
	return r.err
}

// fakeAO serves the MU and CU endpoints used by a Client.
type fakeAO struct {
	*httptest.Server
	t *testing.T

	mu          sync.Mutex
	muStatus    int
	result      Result
	dryRun      Result
	messages    []arweave.ParsedItem
	resultsRead []string
	dryRunReq   dryRunRequest
}

func newFakeAO(t *testing.T) *fakeAO {
	var ao = &fakeAO{t: t, result: Result{Messages: []ResultMessage{{
		Tags: arweave.Tags{{Name: "Action", Value: "Set-Record-Notice"}},
	}}}}
	var mux = http.NewServeMux()

	mux.HandleFunc("/mu/", func(w http.ResponseWriter, r *http.Request) {
		ao.mu.Lock()
		defer ao.mu.Unlock()

		if ao.muStatus != 0 {
			http.Error(w, "unavailable", ao.muStatus)
			return
		}
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))

		var b, err = io.ReadAll(r.Body)
		require.NoError(t, err)
		item, err := arweave.ParseDataItem(b)
		require.NoError(t, err)

		ao.messages = append(ao.messages, item)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Processing DataItem", "id": item.ID})
	})
	mux.HandleFunc("/cu/result/", func(w http.ResponseWriter, r *http.Request) {
		ao.mu.Lock()
		defer ao.mu.Unlock()

		require.Equal(t, testProcess, r.URL.Query().Get("process-id"))
		ao.resultsRead = append(ao.resultsRead, strings.TrimPrefix(r.URL.Path, "/cu/result/"))
		_ = json.NewEncoder(w).Encode(ao.result)
	})
	mux.HandleFunc("/cu/dry-run", func(w http.ResponseWriter, r *http.Request) {
		ao.mu.Lock()
		defer ao.mu.Unlock()

		require.Equal(t, testProcess, r.URL.Query().Get("process-id"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ao.dryRunReq))
		_ = json.NewEncoder(w).Encode(ao.dryRun)
	})

	ao.Server = httptest.NewServer(mux)
	return ao
}

func (ao *fakeAO) config() Config {
	return Config{MUURL: ao.URL + "/mu", CUURL: ao.URL + "/cu/"}
}
