package auth

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"hash"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	hawk "github.com/tent/hawk-go"
)

type HawkCredentials struct {
	ID        string `json:"id"`
	Key       string `json:"key"`
	Algorithm string `json:"algorithm"`
}

type HawkSettings struct {
	Credentials HawkCredentials `json:"credentials"`
	Ext         string          `json:"ext"`
}

// HawkArtifacts are the request attributes covered by a Hawk MAC.
type HawkArtifacts struct {
	Timestamp int64
	Nonce     string
	Method    string
	Resource  string
	Host      string
	Port      string
	Hash      string
	Ext       string
}

// HawkSigner adds a Hawk Authorization header covering method, URL, time,
// a fresh nonce and a hash of the body.
type HawkSigner struct {
	creds hawk.Credentials
	ext   string
	clock clockwork.Clock
}

func NewHawkSigner(settings HawkSettings, clk clockwork.Clock) (*HawkSigner, error) {
	c := settings.Credentials
	if c.ID == "" || c.Key == "" {
		return nil, fmt.Errorf("auth: hawk: credentials.id and credentials.key are required")
	}
	newHash, err := hashFor(c.Algorithm)
	if err != nil {
		return nil, err
	}
	if strings.ContainsAny(settings.Ext, "\"\\\n") {
		return nil, fmt.Errorf("auth: hawk: ext must not contain quotes, backslashes or newlines")
	}
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &HawkSigner{
		creds: hawk.Credentials{ID: c.ID, Key: c.Key, Hash: newHash},
		ext:   settings.Ext,
		clock: clk,
	}, nil
}

func hashFor(algorithm string) (func() hash.Hash, error) {
	switch strings.ToLower(algorithm) {
	case "", "sha256":
		return sha256.New, nil
	case "sha1":
		return sha1.New, nil
	default:
		return nil, fmt.Errorf("auth: hawk: unsupported algorithm %q", algorithm)
	}
}

func (s *HawkSigner) Sign(req *http.Request, body []byte) error {
	creds := s.creds
	a := hawk.NewRequestAuth(req, &creds, 0)
	a.Timestamp = s.clock.Now()
	a.Host, a.Port = hostPort(req)
	a.Ext = s.ext

	if body != nil {
		h := a.PayloadHash(mediaType(req.Header.Get("Content-Type")))
		h.Write(body)
		a.SetHash(h)
	}

	req.Header.Set("Authorization", a.RequestHeader())
	return nil
}

func hostPort(req *http.Request) (string, string) {
	host := req.URL.Host
	if req.Host != "" {
		host = req.Host
	}
	if h, p, err := net.SplitHostPort(host); err == nil {
		return strings.ToLower(h), p
	}
	if req.URL.Scheme == "https" {
		return strings.ToLower(host), "443"
	}
	return strings.ToLower(host), "80"
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mt
}

// HawkMAC computes the base64 request MAC for a set of artifacts.
func HawkMAC(newHash func() hash.Hash, key string, artifacts HawkArtifacts) string {
	a := &hawk.Auth{
		Credentials: hawk.Credentials{Key: key, Hash: newHash},
		Method:      strings.ToUpper(artifacts.Method),
		RequestURI:  artifacts.Resource,
		Host:        strings.ToLower(artifacts.Host),
		Port:        artifacts.Port,
		Nonce:       artifacts.Nonce,
		Ext:         artifacts.Ext,
		Timestamp:   time.Unix(artifacts.Timestamp, 0),
	}
	if artifacts.Hash != "" {
		a.Hash, _ = base64.StdEncoding.DecodeString(artifacts.Hash)
	}
	a.RequestHeader()
	return base64.StdEncoding.EncodeToString(a.MAC)
}

// PayloadHash computes the Hawk body hash for contentType and payload.
func PayloadHash(newHash func() hash.Hash, contentType string, payload []byte) string {
	a := &hawk.Auth{Credentials: hawk.Credentials{Hash: newHash}}
	h := a.PayloadHash(mediaType(contentType))
	h.Write(payload)
	a.SetHash(h)
	return base64.StdEncoding.EncodeToString(a.Hash)
}
