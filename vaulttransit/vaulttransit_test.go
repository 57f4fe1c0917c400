package vaulttransit

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/libopenstorage/keylist"
	"github.com/libopenstorage/keylist/mem"
	"github.com/libopenstorage/keylist/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransit implements encrypt and decrypt of vault's transit engine by
// tagging the plaintext with the key name and associated data.
type fakeTransit struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (f *fakeTransit) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var in map[string]string
	_ = json.NewDecoder(req.Body).Decode(&in)
	parts := strings.Split(strings.TrimPrefix(req.URL.Path, "/v1/"), "/")
	if len(parts) != 3 || parts[0] != "transit" {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errors":["no handler for route"]}`))
		return
	}
	op, name := parts[1], parts[2]

	reply := func(data map[string]interface{}) {
		body, _ := json.Marshal(map[string]interface{}{"data": data})
		_, _ = w.Write(body)
	}
	switch {
	case op == "keys" && req.Method == http.MethodGet:
		if !f.keys[name] {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
			return
		}
		reply(map[string]interface{}{"name": name, "type": "aes256-gcm96"})
	case op == "keys":
		f.keys[name] = true
		w.WriteHeader(http.StatusNoContent)
	case op == "encrypt":
		sealed := name + "|" + in["associated_data"] + "|" + in["plaintext"]
		reply(map[string]interface{}{
			"ciphertext": "vault:v1:" + base64.StdEncoding.EncodeToString([]byte(sealed)),
		})
	case op == "decrypt":
		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(in["ciphertext"], "vault:v1:"))
		fields := strings.SplitN(string(raw), "|", 3)
		if err != nil || len(fields) != 3 || fields[0] != name || fields[1] != in["associated_data"] {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"errors":["cipher: message authentication failed"]}`))
			return
		}
		reply(map[string]interface{}{"plaintext": fields[2]})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTransit(t *testing.T) (*fakeTransit, *httptest.Server) {
	f := &fakeTransit{keys: map[string]bool{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func TestAll(t *testing.T) {
	f, srv := newTransit(t)
	s, err := New(map[string]interface{}{
		"VAULT_ADDR":  srv.URL,
		"VAULT_TOKEN": "root",
	})
	require.NoError(t, err)
	assert.True(t, f.keys[defaultEncryptionKey], "Expected default key to be created")
	test.RunForSealer(s, t)
}

func TestStore(t *testing.T) {
	_, srv := newTransit(t)
	s, err := keylist.NewSealer(Name, map[string]interface{}{
		"VAULT_ADDR":  srv.URL,
		"VAULT_TOKEN": "root",
	})
	require.NoError(t, err)
	test.RunForStore(mem.NewBackend(), t, keylist.WithSealer(s))
}

func TestConfiguredKey(t *testing.T) {
	f, srv := newTransit(t)
	config := map[string]interface{}{
		"VAULT_ADDR":  srv.URL,
		"VAULT_TOKEN": "root",
		EncryptionKey: "mine",
	}
	_, err := New(config)
	assert.Error(t, err, "Expected missing key to fail")

	f.keys["mine"] = true
	s, err := New(config)
	require.NoError(t, err)
	assert.Equal(t, "mine", s.(*transitSealer).key.Name)
}
